package language

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/pdfbot/migrations"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := fs.ReadFile(migrations.FS, "000001_user_languages.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func TestTableShape(t *testing.T) {
	if n := len(All()); n != 39 {
		t.Fatalf("expected 39 languages, got %d", n)
	}
	list := All()
	for i := 1; i < len(list); i++ {
		if list[i-1].Code >= list[i].Code {
			t.Fatalf("All() not sorted at %d: %s >= %s", i, list[i-1].Code, list[i].Code)
		}
	}
	if code, ok := CodeFor("🇪🇸 español"); !ok || code != "es_ES" {
		t.Fatalf("CodeFor = %q, %v", code, ok)
	}
	if IsDisplayName("es_ES") {
		t.Fatal("codes are not display names")
	}
}

func TestFromShortCode(t *testing.T) {
	cases := map[string]string{
		"es":    "es_ES",
		"en":    "en_US",
		"zh":    "zh_CN",
		"pt":    "pt_PT",
		"pt-BR": "pt_BR",
		"de_DE": "de_DE",
	}
	for in, want := range cases {
		if got, ok := FromShortCode(in); !ok || got != want {
			t.Fatalf("FromShortCode(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := FromShortCode("xx"); ok {
		t.Fatal("unknown locale must not resolve")
	}
	if _, ok := FromShortCode(""); ok {
		t.Fatal("empty locale must not resolve")
	}
}

func TestSQLStoreRoundTripEveryLanguage(t *testing.T) {
	store := NewSQLStore(openSQLite(t))
	ctx := context.Background()

	if _, found, err := store.Get(ctx, 1); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}
	for _, l := range All() {
		if err := store.Upsert(ctx, 1, l.Code); err != nil {
			t.Fatalf("upsert %s: %v", l.Code, err)
		}
		got, found, err := store.Get(ctx, 1)
		if err != nil || !found || got != l.Code {
			t.Fatalf("get after upsert %s: %q %v %v", l.Code, got, found, err)
		}
	}
}

func TestSQLStoreUpsertIdempotent(t *testing.T) {
	store := NewSQLStore(openSQLite(t))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.Upsert(ctx, 9, "fr_FR"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if got, _, _ := store.Get(ctx, 9); got != "fr_FR" {
		t.Fatalf("got %q", got)
	}
}

type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	c.gets++
	return c.Store.Get(ctx, userID)
}

func TestCachedStoreReadThrough(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	cached, err := NewCachedStore(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer cached.Close()
	ctx := context.Background()

	if err := cached.Upsert(ctx, 5, "ja_JP"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for i := 0; i < 3; i++ {
		if got, ok, _ := cached.Get(ctx, 5); !ok || got != "ja_JP" {
			t.Fatalf("get = %q %v", got, ok)
		}
	}
	if inner.gets != 0 {
		t.Fatalf("expected cache hits only, inner saw %d reads", inner.gets)
	}
	if _, ok, _ := cached.Get(ctx, 6); ok {
		t.Fatal("unknown user must miss")
	}
	if inner.gets != 1 {
		t.Fatalf("miss must reach the store once, got %d", inner.gets)
	}
}

func TestServiceResolveOrder(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, "de_DE")
	ctx := context.Background()

	if got := svc.Resolve(ctx, 1, ""); got != "de_DE" {
		t.Fatalf("default: %q", got)
	}
	if got := svc.Resolve(ctx, 1, "es"); got != "es_ES" {
		t.Fatalf("platform: %q", got)
	}
	if _, found, _ := store.Get(ctx, 1); found {
		t.Fatal("Resolve must not write")
	}
	if _, err := svc.Set(ctx, 1, "🇰🇷 한국어"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := svc.Resolve(ctx, 1, "es"); got != "ko_KR" {
		t.Fatalf("stored: %q", got)
	}
	if _, err := svc.Set(ctx, 1, "Klingon"); err == nil {
		t.Fatal("unknown display name must fail")
	}
}

func TestMenuExcludesCurrent(t *testing.T) {
	rows := Menu("en_GB")
	total := 0
	for i, row := range rows {
		if len(row) > 2 || (len(row) < 2 && i != len(rows)-1) {
			t.Fatalf("row %d has %d buttons", i, len(row))
		}
		for _, l := range row {
			if l.Code == "en_GB" {
				t.Fatal("current language must be excluded")
			}
			total++
		}
	}
	if total != 38 {
		t.Fatalf("expected 38 buttons, got %d", total)
	}
	if rows[0][0].Code != "af_ZA" {
		t.Fatalf("first button = %s", rows[0][0].Code)
	}
}
