package database

import "testing"

func TestConfigURLEscapesCredentials(t *testing.T) {
	c := &Config{Host: "db", Port: "5432", User: "sync", Password: "p@ss/word", DBName: "wealthsync", SSLMode: "disable"}
	want := "postgres://sync:p%40ss%2Fword@db:5432/wealthsync?sslmode=disable"
	if got := c.URL(); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv("DB_NAME", "custom")
	c := NewConfig()
	if c.DBName != "custom" {
		t.Errorf("DBName = %q", c.DBName)
	}
	if c.MigrationsPath == "" {
		t.Error("expected default migrations path")
	}
}
