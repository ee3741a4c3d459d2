// Package redisconn builds redigo connection pools for the Redis job
// store.
package redisconn

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/gomodule/redigo/redis"

	queueErrors "github.com/greengoods/gardenqueue/errors"
)

// ErrInvalidScheme is returned when the Redis URI scheme is invalid.
var ErrInvalidScheme = errors.New("invalid Redis database URI scheme")

// Options describe a Redis connection.
type Options struct {
	URI            string
	MaxConnections int
	MaxIdle        int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	UseTLS         bool
	TLSSkipVerify  bool
	TLSCertPath    string
}

// NewPool creates a redigo pool that dials with the given options.
func NewPool(options Options) *redis.Pool {
	return &redis.Pool{
		MaxActive:   options.MaxConnections,
		MaxIdle:     options.MaxIdle,
		IdleTimeout: options.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			return Dial(options)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Dial establishes a single Redis connection.
func Dial(options Options) (redis.Conn, error) {
	uri, err := url.Parse(options.URI)
	if err != nil {
		return nil, queueErrors.NewConnectionError(options.URI,
			fmt.Errorf("invalid URI: %w", err))
	}

	var network, host, password, db string

	dialOptions := []redis.DialOption{
		redis.DialConnectTimeout(options.ConnectTimeout),
		redis.DialReadTimeout(options.ReadTimeout),
		redis.DialWriteTimeout(options.WriteTimeout),
	}

	switch uri.Scheme {
	case "redis", "rediss":
		network = "tcp"
		host = uri.Host
		if uri.User != nil {
			password, _ = uri.User.Password()
		}
		if len(uri.Path) > 1 {
			db = uri.Path[1:]
		}

		if uri.Scheme == "rediss" || options.UseTLS {
			tlsConfig := &tls.Config{
				InsecureSkipVerify: options.TLSSkipVerify,
			}
			if options.TLSCertPath != "" {
				pool, err := loadCertPool(options.TLSCertPath)
				if err != nil {
					return nil, err
				}
				tlsConfig.RootCAs = pool
			}
			dialOptions = append(dialOptions,
				redis.DialUseTLS(true),
				redis.DialTLSConfig(tlsConfig),
			)
		}
	case "unix":
		network = "unix"
		host = uri.Path
	default:
		return nil, queueErrors.NewConnectionError(options.URI, ErrInvalidScheme)
	}

	conn, err := redis.Dial(network, host, dialOptions...)
	if err != nil {
		return nil, queueErrors.NewConnectionError(options.URI,
			fmt.Errorf("failed to connect: %w", err))
	}

	if password != "" {
		if _, err := conn.Do("AUTH", password); err != nil {
			conn.Close()
			return nil, queueErrors.NewConnectionError(options.URI,
				fmt.Errorf("authentication failed: %w", err))
		}
	}

	if db != "" {
		if _, err := conn.Do("SELECT", db); err != nil {
			conn.Close()
			return nil, queueErrors.NewConnectionError(options.URI,
				fmt.Errorf("failed to select database: %w", err))
		}
	}

	return conn, nil
}

func loadCertPool(certPath string) (*x509.CertPool, error) {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	certs, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert file %q: %w", certPath, err)
	}

	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		return nil, fmt.Errorf("failed to append certs from %q", certPath)
	}

	return rootCAs, nil
}
