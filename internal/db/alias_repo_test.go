package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAliasRepoLookupFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery(`SELECT template FROM aliases`).
		WithArgs("acme", "!a").
		WillReturnRows(sqlmock.NewRows([]string{"template"}).AddRow("!b"))

	repo := NewAliasRepo(conn)
	template, ok, err := repo.Lookup(context.Background(), "acme", "!a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok || template != "!b" {
		t.Fatalf("expected !b, true; got %q, %v", template, ok)
	}
}

func TestAliasRepoLookupMissing(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery(`SELECT template FROM aliases`).
		WithArgs("acme", "!nope").
		WillReturnRows(sqlmock.NewRows([]string{"template"}))

	repo := NewAliasRepo(conn)
	_, ok, err := repo.Lookup(context.Background(), "acme", "!nope")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatal("expected no alias to be found")
	}
}

func TestChatAliasStoreAdaptsRepo(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery(`SELECT template FROM aliases`).
		WithArgs("acme", "!a").
		WillReturnRows(sqlmock.NewRows([]string{"template"}).AddRow("!b"))

	store := NewChatAliasStore(NewAliasRepo(conn))
	template, ok := store.Lookup("acme", "!a")
	if !ok || template != "!b" {
		t.Fatalf("expected !b, true; got %q, %v", template, ok)
	}
}
