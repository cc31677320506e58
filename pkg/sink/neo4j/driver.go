package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Session runs Cypher statements.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
	Close(ctx context.Context) error
}

// Driver opens write sessions. The bolt implementation wraps
// neo4j.DriverWithContext; tests supply their own.
type Driver interface {
	NewWriteSession(ctx context.Context, database string) Session
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// DialFunc creates a driver for uri.
type DialFunc func(uri, username, password string) (Driver, error)

// Dial creates a bolt driver. Empty credentials mean no authentication.
func Dial(uri, username, password string) (Driver, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}
	d, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, err
	}
	return &boltDriver{driver: d}, nil
}

type boltDriver struct {
	driver neo4j.DriverWithContext
}

func (b *boltDriver) NewWriteSession(ctx context.Context, database string) Session {
	return &boltSession{session: b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: database,
	})}
}

func (b *boltDriver) VerifyConnectivity(ctx context.Context) error {
	return b.driver.VerifyConnectivity(ctx)
}

func (b *boltDriver) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

type boltSession struct {
	session neo4j.SessionWithContext
}

// Run executes an auto-commit statement and waits for the server to
// acknowledge it.
func (b *boltSession) Run(ctx context.Context, cypher string, params map[string]any) error {
	res, err := b.session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (b *boltSession) Close(ctx context.Context) error {
	return b.session.Close(ctx)
}
