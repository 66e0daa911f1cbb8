// Command schemadump applies the keymap store migrations to an empty
// database and writes the resulting schema, which sqlc reads as schema.sql.
package main

import (
	"bufio"
	"codeberg.org/miketth/wlkeymap/pkg/keymapstore/sqlite"
	"codeberg.org/miketth/wlkeymap/pkg/keymapstore/sqlite/migrations"
	"context"
	"database/sql"
	"flag"
	"fmt"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"io"
	"log"
	"os"
	"strings"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	path := flag.String("path", "pkg/keymapstore/sqlite/schema.sql", "path to dump the schema to, - for stdout")
	debug := flag.Bool("debug", false, "use debug level logging")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	log.Debug("creating empty database")
	db, err := sql.Open("sqlite3", "file:schemadump?cache=shared&mode=memory")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	log.Debug("applying migrations")
	if _, err := migrations.Migrate(db, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	out := io.Writer(os.Stdout)
	if *path != "-" {
		file, err := os.Create(*path)
		if err != nil {
			return fmt.Errorf("create file: %w", err)
		}
		defer file.Close()
		out = file
	}

	w := bufio.NewWriter(out)
	log.Infof("dumping schema to %s", *path)
	if err := dumpSchema(context.Background(), sqlite.New(db), w); err != nil {
		return fmt.Errorf("dump schema: %w", err)
	}

	return w.Flush()
}

func dumpSchema(ctx context.Context, db *sqlite.Queries, w io.Writer) error {
	tables, err := db.DumpTables(ctx)
	if err != nil {
		return fmt.Errorf("dump tables: %w", err)
	}

	rest, err := db.DumpRest(ctx)
	if err != nil {
		return fmt.Errorf("dump indexes: %w", err)
	}

	for _, statement := range append(tables, rest...) {
		if statement == nil || strings.TrimSpace(*statement) == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s;\n\n", *statement); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
	}

	// sqlc does not know sqlite_master, the dump queries need it.
	if _, err := io.WriteString(w, sqliteMasterSchema); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}

	return nil
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stderr"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}

const sqliteMasterSchema = `
create table sqlite_master (
    type     text,
    name     text,
    tbl_name text,
    rootpage int,
    sql      text
);
`
