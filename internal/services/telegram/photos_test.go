package telegram

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

var testImageBytes = []byte("\x89PNG\r\n\x1a\nimagebytes")

// serveTestFile exposes one downloadable photo and points the fake
// Telegram API's file resolver at it.
func serveTestFile(t *testing.T, api *fakeAPI, fileID string, body []byte, status int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			if _, err := w.Write(body); err != nil {
				t.Errorf("write file body: %v", err)
			}
		}
	}))
	t.Cleanup(srv.Close)
	api.mu.Lock()
	api.fileURLs[fileID] = srv.URL + "/file/" + fileID + ".jpg"
	api.mu.Unlock()
}

// handlePhotoUpload records one multipart upload for sale s1.
type photoUpload struct {
	fileName       string
	data           []byte
	caption        string
	submittedVia   string
	telegramFileID string
}

func handlePhotoUpload(t *testing.T, mux *http.ServeMux, got *photoUpload) {
	t.Helper()
	mux.HandleFunc("POST /v1/sales/s1/photos", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			writeAPIError(t, w, http.StatusBadRequest, "BAD_REQUEST", "bad multipart")
			return
		}
		got.caption = r.FormValue("caption")
		got.submittedVia = r.FormValue("submitted_via")
		got.telegramFileID = r.FormValue("telegram_file_id")
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo part: %v", err)
			writeAPIError(t, w, http.StatusBadRequest, "SALE_PHOTO_EMPTY", "missing photo")
			return
		}
		defer file.Close()
		got.fileName = header.Filename
		if got.data, err = io.ReadAll(file); err != nil {
			t.Errorf("read photo part: %v", err)
		}
		writeJSON(t, w, http.StatusCreated, apitypes.SalePhoto{ID: "ph1", SaleID: "s1", SubmittedVia: "telegram"})
	})
}

func handleSaleByNumber(t *testing.T, mux *http.ServeMux, number string) {
	t.Helper()
	mux.HandleFunc("GET /v1/sales/number/"+number, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.Sale{ID: "s1", Number: number, Status: "completed"})
	})
}

func TestPhotoWithCaptionIsFiled(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	handleSaleByNumber(t, mux, "S-000123")
	var got photoUpload
	handlePhotoUpload(t, mux, &got)
	bot, api := newBotEnv(t, mux)
	serveTestFile(t, api, "file-big", testImageBytes, http.StatusOK)

	bot.handleUpdate(context.Background(), photoUpdate(42, "sale s-000123 after polish",
		tgbotapi.PhotoSize{FileID: "file-small", Width: 90, Height: 90},
		tgbotapi.PhotoSize{FileID: "file-big", Width: 800, Height: 800},
	))

	if got.telegramFileID != "file-big" {
		t.Fatalf("uploaded file id = %q, want the largest size file-big", got.telegramFileID)
	}
	if got.fileName != "file-big.jpg" {
		t.Fatalf("file name = %q, want file-big.jpg", got.fileName)
	}
	if !bytes.Equal(got.data, testImageBytes) {
		t.Fatalf("uploaded bytes = %q, want original image", got.data)
	}
	if got.submittedVia != "telegram" {
		t.Fatalf("submitted_via = %q, want telegram", got.submittedVia)
	}
	if got.caption != "sale s-000123 after polish" {
		t.Fatalf("caption = %q, want original caption", got.caption)
	}
	if reply := api.lastText(t); !strings.Contains(reply, "Filed the photo to sale S-000123") {
		t.Fatalf("reply = %q, want filed confirmation", reply)
	}
}

func TestPhotoWithoutCaptionParksThenResolves(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	handleSaleByNumber(t, mux, "S-000123")
	var got photoUpload
	handlePhotoUpload(t, mux, &got)
	bot, api := newBotEnv(t, mux)
	serveTestFile(t, api, "file-1", testImageBytes, http.StatusOK)

	ctx := context.Background()
	bot.handleUpdate(ctx, photoUpdate(42, "", tgbotapi.PhotoSize{FileID: "file-1", Width: 400, Height: 400}))

	if reply := api.lastText(t); !strings.Contains(reply, "Which sale is this photo for?") {
		t.Fatalf("reply = %q, want sale number prompt", reply)
	}

	bot.handleUpdate(ctx, textUpdate(42, "that was S-000123"))

	if got.telegramFileID != "file-1" {
		t.Fatalf("uploaded file id = %q, want file-1", got.telegramFileID)
	}
	if got.caption != "" {
		t.Fatalf("caption = %q, want empty for a resolved photo", got.caption)
	}
	if reply := api.lastText(t); !strings.Contains(reply, "Filed the photo to sale S-000123") {
		t.Fatalf("reply = %q, want filed confirmation", reply)
	}
	if _, found, err := bot.sessions.Get(ctx, 42); err != nil || found {
		t.Fatalf("session after filing: found=%v err=%v, want cleared", found, err)
	}
}

func TestPendingPhotoReasksWithoutNumber(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	bot, api := newBotEnv(t, mux)

	ctx := context.Background()
	bot.handleUpdate(ctx, photoUpdate(42, "", tgbotapi.PhotoSize{FileID: "file-1", Width: 400, Height: 400}))
	bot.handleUpdate(ctx, textUpdate(42, "no idea"))

	if reply := api.lastText(t); !strings.Contains(reply, "Still need the sale number") {
		t.Fatalf("reply = %q, want renewed prompt", reply)
	}
	if _, found, err := bot.sessions.Get(ctx, 42); err != nil || !found {
		t.Fatalf("session: found=%v err=%v, want still pending", found, err)
	}
}

func TestPhotoUnknownSaleKeepsPending(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	mux.HandleFunc("GET /v1/sales/number/S-777777", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusNotFound, "NOT_FOUND", "sale not found")
	})
	bot, api := newBotEnv(t, mux)

	ctx := context.Background()
	bot.handleUpdate(ctx, photoUpdate(42, "S-777777", tgbotapi.PhotoSize{FileID: "file-1", Width: 400, Height: 400}))

	if reply := api.lastText(t); !strings.Contains(reply, "No sale S-777777") {
		t.Fatalf("reply = %q, want missing sale notice", reply)
	}
	state, found, err := bot.sessions.Get(ctx, 42)
	if err != nil || !found {
		t.Fatalf("session: found=%v err=%v, want parked photo", found, err)
	}
	if state.PendingPhotoFileID != "file-1" {
		t.Fatalf("pending file = %q, want file-1", state.PendingPhotoFileID)
	}
}

func TestPhotoDownloadFailureAsksToResend(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	handleSaleByNumber(t, mux, "S-000123")
	bot, api := newBotEnv(t, mux)
	serveTestFile(t, api, "file-1", nil, http.StatusInternalServerError)

	bot.handleUpdate(context.Background(), photoUpdate(42, "S-000123", tgbotapi.PhotoSize{FileID: "file-1", Width: 400, Height: 400}))

	if reply := api.lastText(t); !strings.Contains(reply, "Send it again") {
		t.Fatalf("reply = %q, want resend request", reply)
	}
}

func TestPhotoUploadRejectionExplains(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	handleSaleByNumber(t, mux, "S-000123")
	mux.HandleFunc("POST /v1/sales/s1/photos", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusRequestEntityTooLarge, "SALE_PHOTO_TOO_LARGE", "photo exceeds limit")
	})
	bot, api := newBotEnv(t, mux)
	serveTestFile(t, api, "file-1", testImageBytes, http.StatusOK)

	bot.handleUpdate(context.Background(), photoUpdate(42, "S-000123", tgbotapi.PhotoSize{FileID: "file-1", Width: 400, Height: 400}))

	if reply := api.lastText(t); !strings.Contains(reply, "larger than the archive accepts") {
		t.Fatalf("reply = %q, want size rejection", reply)
	}
}

func TestPhotoFromUnlinkedChat(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/staff/telegram/99", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusNotFound, "NOT_FOUND", "no staff bound to chat")
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), photoUpdate(99, "S-000123", tgbotapi.PhotoSize{FileID: "file-1", Width: 400, Height: 400}))

	if reply := api.lastText(t); reply != notLinkedText {
		t.Fatalf("reply = %q, want linking instructions", reply)
	}
}

func TestExtractSaleNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want string
	}{
		{"S-000123", "S-000123"},
		{"bracelet for s-000123, polished", "S-000123"},
		{"sale number S-1234567", "S-1234567"},
		{"S-12", ""},
		{"R-000042", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := extractSaleNumber(tc.text); got != tc.want {
			t.Fatalf("extractSaleNumber(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestLargestPhotoPicksBiggestArea(t *testing.T) {
	t.Parallel()

	got := largestPhoto([]tgbotapi.PhotoSize{
		{FileID: "a", Width: 90, Height: 90},
		{FileID: "b", Width: 1280, Height: 720},
		{FileID: "c", Width: 800, Height: 800},
	})
	if got.FileID != "b" {
		t.Fatalf("largest = %q, want b", got.FileID)
	}

	if got := largestPhoto(nil); got.FileID != "" {
		t.Fatalf("largest of none = %q, want empty", got.FileID)
	}
}
