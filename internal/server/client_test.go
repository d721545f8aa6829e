package server

import (
	"context"
	"fmt"
	"testing"

	redigo "github.com/gomodule/redigo/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestClient_GoRedis(t *testing.T) {
	ts := startServer(t, nil)

	rdb := redis.NewClient(&redis.Options{
		Addr:        ts.addr,
		DialTimeout: ioTimeout,
		ReadTimeout: ioTimeout,
	})
	defer rdb.Close()

	ctx := context.Background()

	require.NoError(t, rdb.Ping(ctx).Err())

	msg, err := rdb.Echo(ctx, "hello world").Result()
	require.NoError(t, err)
	assert.Equal(t, "hello world", msg)

	count, err := rdb.Do(ctx, "COMMAND", "COUNT").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(len(commandRegistry)), count)

	err = rdb.Do(ctx, "FLUSHALL").Err()
	require.Error(t, err)
	assert.Equal(t, "ERR unknown command 'FLUSHALL'", err.Error())

	// an application error leaves the connection usable
	require.NoError(t, rdb.Ping(ctx).Err())
}

func TestClient_GoRedisHandshakeDisabled(t *testing.T) {
	ts := startServer(t, nil)

	rdb := redis.NewClient(&redis.Options{
		Addr:            ts.addr,
		Protocol:        2,
		DisableIdentity: true,
	})
	defer rdb.Close()

	ctx := context.Background()
	msg, err := rdb.Echo(ctx, "\x00binary\r\n").Result()
	require.NoError(t, err)
	assert.Equal(t, "\x00binary\r\n", msg)
}

func TestClient_RedigoConcurrent(t *testing.T) {
	ts := startServer(t, nil)

	const (
		clients  = 8
		requests = 200
	)

	var g errgroup.Group
	for i := range clients {
		g.Go(func() error {
			conn, err := redigo.Dial("tcp", ts.addr,
				redigo.DialConnectTimeout(ioTimeout),
				redigo.DialReadTimeout(ioTimeout),
				redigo.DialWriteTimeout(ioTimeout),
			)
			if err != nil {
				return err
			}
			defer conn.Close()

			for j := range requests {
				want := fmt.Sprintf("client-%d-msg-%d", i, j)
				got, err := redigo.String(conn.Do("ECHO", want))
				if err != nil {
					return err
				}
				if got != want {
					return fmt.Errorf("echo: got %q, want %q", got, want)
				}

				pong, err := redigo.String(conn.Do("PING"))
				if err != nil {
					return err
				}
				if pong != "PONG" {
					return fmt.Errorf("ping: got %q", pong)
				}
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
}

func TestClient_RedigoPipelined(t *testing.T) {
	ts := startServer(t, nil)

	conn, err := redigo.Dial("tcp", ts.addr, redigo.DialReadTimeout(ioTimeout))
	require.NoError(t, err)
	defer conn.Close()

	for i := range 100 {
		require.NoError(t, conn.Send("ECHO", i))
	}
	require.NoError(t, conn.Send("UNKNOWN"))
	require.NoError(t, conn.Flush())

	for i := range 100 {
		got, err := redigo.Int(conn.Receive())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	_, err = conn.Receive()
	var redisErr redigo.Error
	require.ErrorAs(t, err, &redisErr)
	assert.Equal(t, "ERR unknown command 'UNKNOWN'", redisErr.Error())

	require.NoError(t, conn.Err())
}
