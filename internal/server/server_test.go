package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/dealership-quote/internal/auth"
	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/iwvelando/dealership-quote/internal/config"
	"github.com/iwvelando/dealership-quote/internal/events"
	"github.com/iwvelando/dealership-quote/internal/metrics"
	"github.com/iwvelando/dealership-quote/internal/quote"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"github.com/iwvelando/dealership-quote/pkg/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "correct horse"

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type testServer struct {
	handler   http.Handler
	store     *catalog.MemoryStore
	publisher *events.RecordingPublisher
}

func newTestServer(t *testing.T, withAuth bool, maxBody int64) testServer {
	t.Helper()
	ctx := context.Background()

	store := catalog.NewMemoryStore()
	if err := catalog.Seed(ctx, store, testutil.FixturePrices(), testutil.FixtureFees(), nil); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	publisher := &events.RecordingPublisher{}
	m := metrics.New()
	svc := quote.NewService(quote.Deps{
		Store:       store,
		Publisher:   publisher,
		Metrics:     m,
		Calculator:  pricing.DefaultCalculator(),
		LoanOptions: loans.DefaultOptions(),
		Now:         func() time.Time { return fixedNow },
	})

	var authenticator *auth.Authenticator
	if withAuth {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		authenticator, err = auth.New(config.AuthConfig{
			AdminUsername:     "admin",
			AdminPasswordHash: string(hash),
			JWTSecret:         "test-secret",
			TokenTTL:          time.Hour,
		}, nil)
		if err != nil {
			t.Fatalf("auth.New() error = %v", err)
		}
	}

	handler := NewHandler(Deps{
		Service:      svc,
		Auth:         authenticator,
		Metrics:      m,
		Logger:       zap.NewNop(),
		Version:      "1.2.3",
		MaxBodyBytes: maxBody,
	})
	return testServer{handler: handler, store: store, publisher: publisher}
}

func (ts testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	var body map[string]string
	decode(t, rr, &body)
	if body["error"] == "" {
		t.Fatalf("expected error message in body, got %s", rr.Body.String())
	}
}

func TestHandleVersionAndHealth(t *testing.T) {
	ts := newTestServer(t, false, 0)

	rr := ts.do(t, http.MethodGet, "/api/version", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var version map[string]string
	decode(t, rr, &version)
	if version["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", version["version"])
	}

	rr = ts.do(t, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}

	expectError(t, ts.do(t, http.MethodPost, "/api/version", "", ""), http.StatusMethodNotAllowed)
	expectError(t, ts.do(t, http.MethodGet, "/api/loan", "", ""), http.StatusMethodNotAllowed)
	expectError(t, ts.do(t, http.MethodPost, "/healthz", "", ""), http.StatusMethodNotAllowed)
	expectError(t, ts.do(t, http.MethodGet, "/api/unknown", "", ""), http.StatusNotFound)
}

func TestHandleModels(t *testing.T) {
	ts := newTestServer(t, false, 0)

	rr := ts.do(t, http.MethodGet, "/api/models", "", "")
	var models map[string][]string
	decode(t, rr, &models)
	if len(models["models"]) != 2 || models["models"][0] != "VF 8" {
		t.Fatalf("unexpected models %v", models)
	}

	t.Run("Quote", func(t *testing.T) {
		rr := ts.do(t, http.MethodGet, "/api/models/VF%208/quote", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var q quote.ModelQuote
		decode(t, rr, &q)
		if q.Headline.Variant != pricing.VariantStandard || q.Headline.NetPrice != 679000000 {
			t.Errorf("unexpected headline %+v", q.Headline)
		}
		if q.Headline.DriveAway.Amount != 776280700 {
			t.Errorf("expected drive-away 776280700, got %d", q.Headline.DriveAway.Amount)
		}
	})

	t.Run("Coming soon", func(t *testing.T) {
		rr := ts.do(t, http.MethodGet, "/api/models/VF%209/quote", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var raw map[string]interface{}
		decode(t, rr, &raw)
		headline := raw["headline"].(map[string]interface{})
		if headline["available"] != false {
			t.Errorf("expected unavailable headline, got %v", headline)
		}
		if _, ok := headline["netPrice"]; ok {
			t.Errorf("coming-soon headline must not carry a price: %v", headline)
		}
	})

	t.Run("Unknown model", func(t *testing.T) {
		expectError(t, ts.do(t, http.MethodGet, "/api/models/VF%203/quote", "", ""), http.StatusNotFound)
	})
}

func TestHandleRegistration(t *testing.T) {
	ts := newTestServer(t, false, 0)

	rr := ts.do(t, http.MethodPost, "/api/registration", `{"variant":"Standard","basePrice":699000000}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp registrationResponse
	decode(t, rr, &resp)
	if resp.Variant != "standard" || resp.Fees.RegistrationTax != 69900000 || resp.Fees.TotalRegistration != 97280700 {
		t.Errorf("unexpected registration response %+v", resp)
	}

	tests := []struct {
		name string
		body string
	}{
		{"Unknown variant", `{"variant":"sport","basePrice":699000000}`},
		{"Zero base price", `{"variant":"standard","basePrice":0}`},
		{"Unknown field", `{"variant":"standard","basePrice":1,"color":"red"}`},
		{"Malformed JSON", `{"variant":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, ts.do(t, http.MethodPost, "/api/registration", tt.body, ""), http.StatusBadRequest)
		})
	}
}

func TestHandleLoan(t *testing.T) {
	ts := newTestServer(t, false, 0)

	t.Run("Principal", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/loan", `{"principal":1000000000,"annualRatePercent":8.5,"termMonths":60}`, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp loanResponse
		decode(t, rr, &resp)
		if resp.MonthlyPayment != 20516531 || resp.TotalPayment != 1230991860 || resp.TotalInterest != 230991860 {
			t.Errorf("unexpected loan response %+v", resp)
		}
		if resp.Schedule != nil {
			t.Errorf("schedule should be omitted unless requested")
		}
	})

	t.Run("Schedule", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/loan", `{"principal":1000000000,"annualRatePercent":8.5,"termMonths":60,"schedule":true,"startMonth":"2026-11"}`, "")
		var resp loanResponse
		decode(t, rr, &resp)
		if len(resp.Schedule) != 60 || resp.Schedule[0].Month != "2026-11" || resp.Schedule[59].Month != "2031-10" {
			t.Errorf("unexpected schedule length %d", len(resp.Schedule))
		}
	})

	t.Run("Down payment", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/loan", `{"price":776280700,"downPaymentPercent":30,"annualRatePercent":8.5,"termMonths":60}`, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp loanResponse
		decode(t, rr, &resp)
		if resp.Principal != 543396490 {
			t.Errorf("expected financed principal 543396490, got %d", resp.Principal)
		}
	})

	for _, body := range []string{
		`{"principal":0,"annualRatePercent":8.5,"termMonths":60}`,
		`{"principal":1000,"annualRatePercent":-1,"termMonths":60}`,
		`{"principal":1000,"annualRatePercent":8.5,"termMonths":0}`,
		`{"price":1000,"downPaymentPercent":100,"annualRatePercent":8.5,"termMonths":60}`,
		`{"principal":1000,"annualRatePercent":8.5,"termMonths":12,"schedule":true,"startMonth":"11/2026"}`,
	} {
		expectError(t, ts.do(t, http.MethodPost, "/api/loan", body, ""), http.StatusBadRequest)
	}
}

func TestHandleAffordability(t *testing.T) {
	ts := newTestServer(t, false, 0)

	rr := ts.do(t, http.MethodPost, "/api/affordability", `{"monthlyBudget":8100000,"annualRatePercent":0,"termMonths":96}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp quote.Affordability
	decode(t, rr, &resp)
	if resp.Value != 777600047 || len(resp.Matches) != 1 || resp.Matches[0].DriveAway != 776280700 {
		t.Errorf("unexpected affordability response %+v", resp)
	}

	expectError(t, ts.do(t, http.MethodPost, "/api/affordability", `{"monthlyBudget":0,"termMonths":60}`, ""), http.StatusBadRequest)
}

func TestHandleLead(t *testing.T) {
	ts := newTestServer(t, false, 0)

	rr := ts.do(t, http.MethodPost, "/api/leads", `{"kind":"test_drive","name":"An","phone":"0912 345 678","carModel":"VF 8","preferredDate":"2026-10-20"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var lead catalog.Lead
	decode(t, rr, &lead)
	if lead.Phone != "0912345678" || lead.PreferredDate != "2026-10-20" {
		t.Errorf("unexpected lead %+v", lead)
	}
	if len(ts.publisher.Leads()) != 1 {
		t.Errorf("expected the lead to be published")
	}

	expectError(t, ts.do(t, http.MethodPost, "/api/leads", `{"name":"","phone":"0912345678"}`, ""), http.StatusBadRequest)
	expectError(t, ts.do(t, http.MethodPost, "/api/leads", `{"name":"An","phone":""}`, ""), http.StatusBadRequest)
}

func TestRequestBodyLimit(t *testing.T) {
	ts := newTestServer(t, false, 64)
	body := `{"name":"` + strings.Repeat("a", 200) + `","phone":"0912345678"}`
	expectError(t, ts.do(t, http.MethodPost, "/api/leads", body, ""), http.StatusRequestEntityTooLarge)
}

func TestAdminAPI(t *testing.T) {
	ts := newTestServer(t, true, 0)

	expectError(t, ts.do(t, http.MethodGet, "/api/admin/leads", "", ""), http.StatusUnauthorized)
	expectError(t, ts.do(t, http.MethodGet, "/api/admin/leads", "", "garbage"), http.StatusUnauthorized)
	expectError(t, ts.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"wrong"}`, ""), http.StatusUnauthorized)

	rr := ts.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"`+adminPassword+`"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d: %s", rr.Code, rr.Body.String())
	}
	var login loginResponse
	decode(t, rr, &login)
	token := login.Token
	if token == "" || login.ExpiresAt.IsZero() {
		t.Fatalf("unexpected login response %+v", login)
	}

	t.Run("Upsert price", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, "/api/admin/prices", `{"carModel":"VF 9","variant":"Flagship","basePrice":1699000000,"promotion":50000000,"priceAvailable":true}`, token)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		rr = ts.do(t, http.MethodGet, "/api/models/VF%209/quote", "", "")
		var q quote.ModelQuote
		decode(t, rr, &q)
		if !q.Headline.Available || q.Headline.NetPrice != 1649000000 {
			t.Errorf("expected the new price in the quote, got %+v", q.Headline)
		}

		expectError(t, ts.do(t, http.MethodPut, "/api/admin/prices", `{"carModel":"VF 9","variant":"flagship","basePrice":10,"promotion":20,"priceAvailable":true}`, token), http.StatusBadRequest)
	})

	t.Run("Wrong method", func(t *testing.T) {
		expectError(t, ts.do(t, http.MethodPost, "/api/admin/leads", "", token), http.StatusMethodNotAllowed)
		expectError(t, ts.do(t, http.MethodGet, "/api/admin/prices", "", token), http.StatusMethodNotAllowed)
	})

	t.Run("Delete price", func(t *testing.T) {
		rr := ts.do(t, http.MethodDelete, "/api/admin/prices/VF%208/premium", "", token)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
		}
		expectError(t, ts.do(t, http.MethodDelete, "/api/admin/prices/VF%208/premium", "", token), http.StatusNotFound)
	})

	t.Run("Fees", func(t *testing.T) {
		body := `{"licensePlate":1000000,"roadFee":1560000,"insurance":480700,"serviceFee":0,"inspectionStandard":340000,"inspectionPremium":560000}`
		rr := ts.do(t, http.MethodPut, "/api/admin/fees", body, token)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		rr = ts.do(t, http.MethodGet, "/api/admin/fees", "", token)
		var fees pricing.RegistrationFees
		decode(t, rr, &fees)
		if fees.LicensePlate != 1000000 {
			t.Errorf("expected saved fees, got %+v", fees)
		}
		expectError(t, ts.do(t, http.MethodPut, "/api/admin/fees", `{"roadFee":-1}`, token), http.StatusBadRequest)
	})

	t.Run("Leads", func(t *testing.T) {
		ts.do(t, http.MethodPost, "/api/leads", `{"name":"An","phone":"0912345678"}`, "")
		rr := ts.do(t, http.MethodGet, "/api/admin/leads?limit=10", "", token)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp map[string][]catalog.Lead
		decode(t, rr, &resp)
		if len(resp["leads"]) != 1 {
			t.Errorf("expected 1 lead, got %d", len(resp["leads"]))
		}
		expectError(t, ts.do(t, http.MethodGet, "/api/admin/leads?limit=abc", "", token), http.StatusBadRequest)
	})
}

func TestAdminDisabled(t *testing.T) {
	ts := newTestServer(t, false, 0)
	expectError(t, ts.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"x"}`, ""), http.StatusServiceUnavailable)
	expectError(t, ts.do(t, http.MethodGet, "/api/admin/leads", "", ""), http.StatusServiceUnavailable)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, false, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/loan", nil)
	req.Header.Set("Origin", "https://dealer.example.vn")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	if rr.Code >= 300 {
		t.Fatalf("expected successful preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected Access-Control-Allow-Origin header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false, 0)
	ts.do(t, http.MethodPost, "/api/loan", `{"principal":1000000000,"annualRatePercent":8.5,"termMonths":60}`, "")

	rr := ts.do(t, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `dealership_quote_quotes_total{kind="loan"} 1`) {
		t.Errorf("expected loan quote counter in metrics output")
	}
	if !strings.Contains(body, `route="/api/loan"`) {
		t.Errorf("expected request counter labelled by route")
	}
}
