package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt/openai"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := openai.New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestTranscribe_SendsMultipart(t *testing.T) {
	t.Parallel()

	type seen struct {
		path, auth, model, language, prompt, fileName, contentType string
		audio                                                      []byte
	}
	got := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		got <- seen{
			path:        r.URL.Path,
			auth:        r.Header.Get("Authorization"),
			model:       r.FormValue("model"),
			language:    r.FormValue("language"),
			prompt:      r.FormValue("prompt"),
			fileName:    hdr.Filename,
			contentType: hdr.Header.Get("Content-Type"),
			audio:       data,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " Add action item: send the deck. "})
	}))
	t.Cleanup(srv.Close)

	p, err := openai.New("sk-test", "",
		openai.WithBaseURL(srv.URL+"/v1/"),
		openai.WithLanguage("en"),
		openai.WithPrompt("Abebe, Kebede"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), audio.Chunk{Data: []byte("opus"), MimeType: audio.MimeTypeWebMOpus})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Add action item: send the deck." {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", tr.Provider)
	}

	s := <-got
	if s.path != "/v1/audio/transcriptions" {
		t.Errorf("path = %q", s.path)
	}
	if s.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", s.auth)
	}
	if s.model != string(openai.DefaultModel) {
		t.Errorf("model = %q, want %q", s.model, openai.DefaultModel)
	}
	if s.language != "en" || s.prompt != "Abebe, Kebede" {
		t.Errorf("language/prompt = %q/%q", s.language, s.prompt)
	}
	if s.fileName != "audio.webm" {
		t.Errorf("file name = %q, want audio.webm", s.fileName)
	}
	if !strings.HasPrefix(s.contentType, "audio/webm") {
		t.Errorf("file content type = %q, want audio/webm", s.contentType)
	}
	if string(s.audio) != "opus" {
		t.Errorf("audio = %q", s.audio)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	p, _ := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"))
	_, err := p.Transcribe(context.Background(), audio.Chunk{Data: []byte("x")})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "openai stt") {
		t.Errorf("error %q missing package prefix", err)
	}
}

func TestTranscribe_EmptyChunk(t *testing.T) {
	t.Parallel()
	p, _ := openai.New("sk-test", "")
	if _, err := p.Transcribe(context.Background(), audio.Chunk{}); err == nil {
		t.Fatal("expected error for empty chunk")
	}
}
