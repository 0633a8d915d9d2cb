package clickhouse

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "coincast",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  time.Minute,
		AsyncInsert:  true,
		WaitForAsync: true,
	})
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch:9000" || u.Path != "/coincast" {
		t.Fatalf("unexpected dsn %s", dsn)
	}
	if pw, _ := u.User.Password(); pw != "p@ss" {
		t.Fatalf("password not preserved: %s", dsn)
	}
	q := u.Query()
	if q.Get("dial_timeout") != "5s" || q.Get("max_execution_time") != "60" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("unexpected query %s", u.RawQuery)
	}
	if q.Has("read_timeout") {
		t.Fatalf("read_timeout should be omitted when zero")
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "d", User: "u", UseHTTP: true})
	if !strings.HasPrefix(dsn, "http://") || strings.Contains(dsn, "async_insert") {
		t.Fatalf("unexpected dsn %s", dsn)
	}
}

func TestArchiveSchema(t *testing.T) {
	stmts := ArchiveSchema("coincast")
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[1], "coincast.merged_rows") || !strings.Contains(stmts[2], "coincast.predictions") {
		t.Fatalf("unexpected schema %v", stmts)
	}
}
