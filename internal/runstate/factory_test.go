package runstate_test

import (
	"testing"

	"postforge/internal/config"
	"postforge/internal/logging"
	"postforge/internal/runstate"
	"postforge/internal/testsupport"
)

func TestFactoryAutoPicksFileWithoutCosmos(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	store, err := runstate.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*runstate.FileStore); !ok {
		t.Fatalf("store = %T, want *FileStore", store)
	}
}

func TestFactoryRejectsRemoteWithoutConnection(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRunStateBackend(config.BackendRemote))

	if _, err := runstate.New(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for remote backend without connection string")
	}
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRunStateBackend("etcd"))

	if _, err := runstate.New(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
