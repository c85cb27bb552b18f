package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bingal/rss-reader/internal/database"
	"github.com/bingal/rss-reader/internal/model"
)

func TestLibreTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q, want /translate", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["q"] != "hello" || req["source"] != "auto" || req["target"] != "es" || req["format"] != "text" {
			t.Errorf("request = %v", req)
		}
		if req["api_key"] != "secret" {
			t.Errorf("api_key = %q", req["api_key"])
		}
		json.NewEncoder(w).Encode(map[string]string{"translatedText": "hola"})
	}))
	defer srv.Close()

	lt := NewLibreTranslate(srv.URL, "secret")
	got, err := lt.Translate(context.Background(), "hello", "es")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "hola" {
		t.Errorf("Translate() = %q, want %q", got, "hola")
	}
}

func TestLibreTranslateServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid API key"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	lt := NewLibreTranslate(srv.URL, "")
	_, err := lt.Translate(context.Background(), "hello", "es")
	if err == nil {
		t.Fatal("Translate() should fail on a non-2xx response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want it to carry the status", err)
	}
}

func TestFromStore(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	// Defaults: LibreTranslate targeting English.
	provider, lang, err := FromStore(db)
	if err != nil {
		t.Fatalf("FromStore() error = %v", err)
	}
	if _, ok := provider.(*LibreTranslate); !ok {
		t.Errorf("default provider = %T, want *LibreTranslate", provider)
	}
	if lang != DefaultTargetLang {
		t.Errorf("default lang = %q, want %q", lang, DefaultTargetLang)
	}

	db.SetSetting(model.SettingTranslationProvider, "openai")
	db.SetSetting(model.SettingTranslationTargetLang, "zh")
	provider, lang, err = FromStore(db)
	if err != nil {
		t.Fatalf("FromStore() error = %v", err)
	}
	if _, ok := provider.(*OpenAI); !ok {
		t.Errorf("provider = %T, want *OpenAI", provider)
	}
	if lang != "zh" {
		t.Errorf("lang = %q, want zh", lang)
	}

	db.SetSetting(model.SettingTranslationProvider, "babelfish")
	if _, _, err := FromStore(db); err == nil {
		t.Error("FromStore() should reject an unknown provider")
	}
}
