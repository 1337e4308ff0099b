package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "ticks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *limit, json.NewEncoder(os.Stdout)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type tickRow struct {
	Tick    int64  `json:"tick"`
	Seq     int    `json:"seq"`
	Paused  bool   `json:"paused"`
	Digest  string `json:"digest"`
	Bodies  int    `json:"bodies"`
	Inserts int    `json:"inserts"`
	Removes int    `json:"removes"`
	Merges  int    `json:"merges"`
}

type mergeRow struct {
	Tick     int64           `json:"tick"`
	Survivor int             `json:"survivor"`
	Absorbed json.RawMessage `json:"absorbed"`
	Mass     float64         `json:"mass"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Fixed    bool            `json:"fixed"`
}

type configRow struct {
	Name      string          `json:"name"`
	Digest    string          `json:"digest"`
	JSON      json.RawMessage `json:"json"`
	UpdatedAt string          `json:"updated_at"`
}

func runQuery(db *sql.DB, q string, limit int, enc *json.Encoder) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "ticks":
		rows, err := db.Query(`SELECT tick,seq,paused,digest,bodies,inserts,removes,merges FROM ticks ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r tickRow
			var paused int
			if err := rows.Scan(&r.Tick, &r.Seq, &paused, &r.Digest, &r.Bodies, &r.Inserts, &r.Removes, &r.Merges); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Paused = paused != 0
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return rows.Err()

	case "merges":
		rows, err := db.Query(`SELECT tick,survivor,absorbed,mass,x,y,fixed FROM merges ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r mergeRow
			var absorbed string
			var fixed int
			if err := rows.Scan(&r.Tick, &r.Survivor, &absorbed, &r.Mass, &r.X, &r.Y, &fixed); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Absorbed = json.RawMessage(absorbed)
			r.Fixed = fixed != 0
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return rows.Err()

	case "configs":
		rows, err := db.Query(`SELECT name,digest,json,updated_at FROM configs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r configRow
			var raw string
			if err := rows.Scan(&r.Name, &r.Digest, &raw, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.JSON = json.RawMessage(raw)
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query %q (want ticks|merges|configs)", q)
	}
}
