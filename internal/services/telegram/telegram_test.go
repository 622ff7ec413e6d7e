package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

// fakeAPI records outgoing messages and serves canned file URLs in
// place of the Telegram Bot API.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	sendErr  error
	updates  chan tgbotapi.Update
	fileURLs map[string]string
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		updates:  make(chan tgbotapi.Update, 8),
		fileURLs: map[string]string{},
	}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fileURL, ok := f.fileURLs[fileID]
	if !ok {
		return "", fmt.Errorf("unknown file %s", fileID)
	}
	return fileURL, nil
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.sent))
	for i, msg := range f.sent {
		texts[i] = msg.Text
	}
	return texts
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1].Text
}

func (f *fakeAPI) lastChatID(t *testing.T) int64 {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1].ChatID
}

// newBotEnv stands up a bot against a stub back-office API.
func newBotEnv(t *testing.T, mux *http.ServeMux) (*Bot, *fakeAPI) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api := newFakeAPI()
	backoffice, err := client.New(client.Config{
		BaseURL:    srv.URL,
		Token:      "svc-token",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}
	bot, err := New(Config{
		API:        api,
		Backoffice: backoffice,
		Currency:   "USD",
		Now: func() time.Time {
			return time.Date(2026, time.April, 2, 15, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return bot, api
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeAPIError(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	writeJSON(t, w, status, apitypes.ErrorResponse{
		Error: apitypes.ErrorBody{Code: code, Message: message},
	})
}

// handleStaffLookup links one chat to the staff user vera.
func handleStaffLookup(t *testing.T, mux *http.ServeMux, chatID int64) {
	mux.HandleFunc("GET /v1/staff/telegram/"+strconv.FormatInt(chatID, 10), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.StaffUser{
			ID:             "st1",
			Username:       "vera",
			Role:           "clerk",
			TelegramChatID: chatID,
			Active:         true,
		})
	})
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.Index(text, " "); i != -1 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: length},
		},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
	}}
}

func photoUpdate(chatID int64, caption string, sizes ...tgbotapi.PhotoSize) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Caption: caption,
		Chat:    &tgbotapi.Chat{ID: chatID},
		Photo:   sizes,
	}}
}

func TestStartLinksChat(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var bound apitypes.BindTelegramRequest
	mux.HandleFunc("POST /v1/staff/telegram-bind", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&bound); err != nil {
			t.Errorf("decode bind request: %v", err)
		}
		writeJSON(t, w, http.StatusOK, apitypes.StaffUser{
			ID:       "st1",
			Username: bound.Username,
			Active:   true,
		})
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/start Vera"))

	if bound.Username != "vera" {
		t.Fatalf("bound username = %q, want vera", bound.Username)
	}
	if bound.ChatID != 42 {
		t.Fatalf("bound chat = %d, want 42", bound.ChatID)
	}
	reply := api.lastText(t)
	if !strings.Contains(reply, "Linked this chat to vera") {
		t.Fatalf("reply = %q, want link confirmation", reply)
	}
	if api.lastChatID(t) != 42 {
		t.Fatalf("reply chat = %d, want 42", api.lastChatID(t))
	}
}

func TestStartUnknownUsername(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/staff/telegram-bind", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusNotFound, "NOT_FOUND", "staff user not found")
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/start ghost"))

	if reply := api.lastText(t); !strings.Contains(reply, "No staff account named ghost") {
		t.Fatalf("reply = %q, want unknown account notice", reply)
	}
}

func TestStartInactiveAccount(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/staff/telegram-bind", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusUnauthorized, "STAFF_INACTIVE", "staff account is inactive")
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/start vera"))

	if reply := api.lastText(t); !strings.Contains(reply, "deactivated") {
		t.Fatalf("reply = %q, want deactivated notice", reply)
	}
}

func TestStartWithoutArgsShowsBinding(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/start"))

	if reply := api.lastText(t); !strings.Contains(reply, "linked to vera") {
		t.Fatalf("reply = %q, want current binding", reply)
	}
}

func TestUnlinkedChatGetsInstructions(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/staff/telegram/99", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusNotFound, "NOT_FOUND", "no staff bound to chat")
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(99, "/sale S-000123"))

	if reply := api.lastText(t); reply != notLinkedText {
		t.Fatalf("reply = %q, want linking instructions", reply)
	}
}

func TestSaleCommandRendersCard(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	mux.HandleFunc("GET /v1/sales/number/S-000123", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.Sale{
			ID:         "s1",
			Number:     "S-000123",
			ClientID:   "c1",
			Status:     "partially_paid",
			Total:      1250000,
			AmountPaid: 250000,
			AmountDue:  1000000,
			SoldAt:     time.Date(2026, time.April, 1, 13, 30, 0, 0, time.UTC),
		})
	})
	mux.HandleFunc("GET /v1/clients/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.Client{ID: "c1", FullName: "Anna Sokolova"})
	})
	bot, api := newBotEnv(t, mux)

	// Lowercase input still finds the uppercase number.
	bot.handleUpdate(context.Background(), commandUpdate(42, "/sale s-000123"))

	reply := api.lastText(t)
	for _, want := range []string{
		"Sale S-000123 (partially_paid)",
		"Client: Anna Sokolova",
		"Total: 12,500.00 USD",
		"Paid: 2,500.00 USD",
		"Due: 10,000.00 USD",
		"Sold: 2026-04-01",
	} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply = %q, missing %q", reply, want)
		}
	}
}

func TestSaleCommandUnknownNumber(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	mux.HandleFunc("GET /v1/sales/number/S-999999", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusNotFound, "NOT_FOUND", "sale not found")
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/sale S-999999"))

	if reply := api.lastText(t); !strings.Contains(reply, "No sale S-999999") {
		t.Fatalf("reply = %q, want missing sale notice", reply)
	}
}

func TestSalesCommandUsesDateArgument(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	var gotDate string
	mux.HandleFunc("GET /v1/sales/summary", func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("date")
		writeJSON(t, w, http.StatusOK, apitypes.SaleSummary{
			Date:      "2026-04-01",
			SaleCount: 3,
			Total:     4120000,
			Paid:      2970000,
			ByMethod: []apitypes.MethodTotal{
				{Method: "cash", Total: 2000000},
				{Method: "card", Total: 970000},
			},
		})
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/sales 2026-04-01"))

	if gotDate != "2026-04-01" {
		t.Fatalf("date param = %q, want 2026-04-01", gotDate)
	}
	reply := api.lastText(t)
	for _, want := range []string{"Sales for 2026-04-01", "Count: 3", "Total: 41,200.00 USD", "cash: 20,000.00 USD"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply = %q, missing %q", reply, want)
		}
	}
}

func TestSalesCommandRejectsBadDate(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/sales yesterday"))

	if reply := api.lastText(t); !strings.Contains(reply, "Usage: /sales") {
		t.Fatalf("reply = %q, want usage", reply)
	}
}

func TestClientCommandShowsBalance(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	var gotQuery string
	mux.HandleFunc("GET /v1/clients", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		writeJSON(t, w, http.StatusOK, apitypes.ClientPage{Clients: []apitypes.Client{
			{ID: "c1", FullName: "Anna Sokolova", Phone: "+79151234567", DiscountPercent: 5},
			{ID: "c2", FullName: "Anna Petrova"},
		}})
	})
	mux.HandleFunc("GET /v1/clients/c1/balance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.ClientBalance{
			ClientID:    "c1",
			Obligations: 150000,
			Paid:        30000,
			Balance:     -120000,
		})
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/client anna"))

	if gotQuery != "anna" {
		t.Fatalf("query param = %q, want anna", gotQuery)
	}
	reply := api.lastText(t)
	for _, want := range []string{
		"Anna Sokolova",
		"Phone: +79151234567",
		"Discount: 5%",
		"owes 1,200.00 USD",
		"Also matched:",
		"Anna Petrova",
	} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply = %q, missing %q", reply, want)
		}
	}
}

func TestClientCommandNoMatches(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	mux.HandleFunc("GET /v1/clients", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.ClientPage{})
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/client nobody"))

	if reply := api.lastText(t); !strings.Contains(reply, "No clients match nobody") {
		t.Fatalf("reply = %q, want no-match notice", reply)
	}
}

func TestTrackCommandRendersTimeline(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	mux.HandleFunc("POST /v1/track", func(w http.ResponseWriter, r *http.Request) {
		var req apitypes.TrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode track request: %v", err)
		}
		if req.TrackingCode != "RA644000001RU" {
			t.Errorf("tracking code = %q, want RA644000001RU", req.TrackingCode)
		}
		writeJSON(t, w, http.StatusOK, apitypes.TrackResponse{
			TrackingCode: "RA644000001RU",
			LatestStatus: "in_transit",
			Events: []apitypes.ShipmentEvent{
				{OccurredAt: time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC), Status: "accepted", Description: "Accepted at branch", Location: "Moscow"},
				{OccurredAt: time.Date(2026, time.April, 2, 7, 30, 0, 0, time.UTC), Status: "in_transit", Description: "Left sorting center"},
			},
		})
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/track RA644000001RU"))

	reply := api.lastText(t)
	for _, want := range []string{
		"RA644000001RU: in_transit",
		"Accepted at branch (Moscow)",
		"Left sorting center",
	} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply = %q, missing %q", reply, want)
		}
	}
}

func TestTrackCommandErrorBranches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		code   string
		want   string
	}{
		{"unknown code", http.StatusNotFound, "TRACKING_NOT_FOUND", "no record"},
		{"tracker off", http.StatusServiceUnavailable, "TRACKER_NOT_CONFIGURED", "not configured"},
		{"courier down", http.StatusBadGateway, "COURIER_UNAVAILABLE", "not answering"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			handleStaffLookup(t, mux, 42)
			mux.HandleFunc("POST /v1/track", func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(t, w, tc.status, tc.code, tc.code)
			})
			bot, api := newBotEnv(t, mux)

			bot.handleUpdate(context.Background(), commandUpdate(42, "/track XYZ123"))

			if reply := api.lastText(t); !strings.Contains(reply, tc.want) {
				t.Fatalf("reply = %q, want %q", reply, tc.want)
			}
		})
	}
}

func TestRepairCommandRendersCard(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handleStaffLookup(t, mux, 42)
	mux.HandleFunc("GET /v1/repairs/number/R-000042", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.Repair{
			ID:              "r1",
			Number:          "R-000042",
			ClientID:        "c1",
			ItemDescription: "gold ring",
			Issue:           "stone loose",
			Status:          "ready",
			FinalPrice:      300000,
			AmountPaid:      100000,
			ReceivedAt:      time.Date(2026, time.March, 28, 11, 0, 0, 0, time.UTC),
		})
	})
	mux.HandleFunc("GET /v1/clients/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, apitypes.Client{ID: "c1", FullName: "Anna Sokolova"})
	})
	bot, api := newBotEnv(t, mux)

	bot.handleUpdate(context.Background(), commandUpdate(42, "/repair r-000042"))

	reply := api.lastText(t)
	for _, want := range []string{
		"Repair R-000042 (ready)",
		"Item: gold ring",
		"Issue: stone loose",
		"Price: 3,000.00 USD",
		"Paid: 1,000.00 USD",
		"Received: 2026-03-28",
	} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply = %q, missing %q", reply, want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	bot, api := newBotEnv(t, http.NewServeMux())

	bot.handleUpdate(context.Background(), commandUpdate(42, "/frobnicate"))

	if reply := api.lastText(t); !strings.Contains(reply, "Unknown command") {
		t.Fatalf("reply = %q, want unknown command notice", reply)
	}
}

func TestHelpCommandListsFeatures(t *testing.T) {
	t.Parallel()

	bot, api := newBotEnv(t, http.NewServeMux())

	bot.handleUpdate(context.Background(), commandUpdate(42, "/help"))

	reply := api.lastText(t)
	for _, want := range []string{"/sale", "/sales", "/client", "/repair", "/track"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("help = %q, missing %q", reply, want)
		}
	}
}

func TestPlainTextWithoutSessionIsIgnored(t *testing.T) {
	t.Parallel()

	bot, api := newBotEnv(t, http.NewServeMux())

	bot.handleUpdate(context.Background(), textUpdate(42, "good morning"))

	if texts := api.sentTexts(); len(texts) != 0 {
		t.Fatalf("sent = %v, want silence", texts)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	bot, api := newBotEnv(t, http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if !api.stopped {
		t.Fatal("update stream was not stopped")
	}
}

func TestRunStopsWhenUpdatesClose(t *testing.T) {
	t.Parallel()

	bot, api := newBotEnv(t, http.NewServeMux())
	close(api.updates)

	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after channel close")
	}
}
