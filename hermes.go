package hermes

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var dataTypes []*pgtype.Type
var dtMutex sync.RWMutex

// Connect opens a pgx database connection and returns it behind a Conn that reconnects and
// retries once when the connection drops.  The Conn classifies failures with PgxClassifier
// unless the options say otherwise.
func Connect(ctx context.Context, uri string, opts ...Option) (*Conn, error) {
	config, err := pgx.ParseConfig(uri)
	if err != nil {
		return nil, err
	}

	return ConnectConfig(ctx, config, opts...)
}

// ConnectConfig opens a pgx database connection based on a connection configuration and returns
// it behind a Conn.  See Connect.
func ConnectConfig(ctx context.Context, config *pgx.ConnConfig, opts ...Option) (*Conn, error) {
	driver := NewPgxDriver(DialConfig(config))
	if config.ConnectTimeout > 0 {
		driver.SetTimeout(config.ConnectTimeout)
	}

	if err := driver.Connect(ctx); err != nil {
		return nil, err
	}

	return New(driver, append([]Option{WithClassifier(PgxClassifier)}, opts...)...), nil
}

// Register a new datatype to be associated with connections, such as a custom enum or composite
// type.  Every new connection gets the registered types, including the connections opened to
// recover from a disconnect.  Best to call this before calling Connect.
func Register(dataType *pgtype.Type) {
	dtMutex.Lock()
	defer dtMutex.Unlock()

	dataTypes = append(dataTypes, dataType)
}

func registerTypes(typeMap *pgtype.Map) {
	dtMutex.RLock()
	defer dtMutex.RUnlock()

	for _, dt := range dataTypes {
		typeMap.RegisterType(dt)
	}
}
