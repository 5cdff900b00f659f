package metaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     zap.NewNop(),
		sleep:   func(time.Duration) {},
	}
}

func TestGetCampaignsPagination(t *testing.T) {
	var srv *httptest.Server
	calls := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("after") == "" {
			fmt.Fprintf(w, `{"data":[{"id":"c1","name":"One","status":"ACTIVE"}],"paging":{"next":"%s/act_1/campaigns?after=p2&access_token=tok"}}`, srv.URL)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"c2","name":"Two","status":"PAUSED"}],"paging":{}}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	campaigns, err := c.GetCampaigns(context.Background(), "act_1", "tok")
	if err != nil {
		t.Fatalf("GetCampaigns: %v", err)
	}
	if len(campaigns) != 2 {
		t.Fatalf("expected 2 campaigns across pages, got %d", len(campaigns))
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
	if campaigns[1].ID != "c2" || campaigns[1].Status != "PAUSED" {
		t.Errorf("unexpected second campaign: %+v", campaigns[1])
	}
}

func TestRequestRetriesOnRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			fmt.Fprint(w, `{"error":{"message":"too many calls","code":17}}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"c1","name":"One","status":"ACTIVE"}]}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	campaigns, err := c.GetCampaigns(context.Background(), "act_1", "tok")
	if err != nil {
		t.Fatalf("expected rate-limited request to recover, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(campaigns) != 1 {
		t.Errorf("expected 1 campaign, got %d", len(campaigns))
	}
}

func TestRequestDoesNotRetryTokenError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","code":190}}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetCampaigns(context.Background(), "act_1", "bad")
	if err == nil {
		t.Fatal("expected error for invalid token")
	}
	if calls != 1 {
		t.Errorf("token errors must not be retried, got %d attempts", calls)
	}
}

func TestUpdateStatusSuccessShapes(t *testing.T) {
	for _, body := range []string{`{"success":true}`, `{"id":"123"}`, `true`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if err := r.ParseForm(); err == nil {
				if got := r.PostForm.Get("status"); got != "PAUSED" {
					t.Errorf("expected status=PAUSED, got %q", got)
				}
			}
			fmt.Fprint(w, body)
		}))

		c := testClient(srv.URL)
		if err := c.UpdateStatus(context.Background(), "123", "PAUSED", "tok"); err != nil {
			t.Errorf("body %q: unexpected error %v", body, err)
		}
		srv.Close()
	}
}

func TestInsightRowUnmarshal(t *testing.T) {
	raw := `{
		"campaign_id": "c1",
		"account_currency": "BRL",
		"spend": "123.45",
		"impressions": "1000",
		"ctr": 2.5,
		"date_start": "2024-01-01",
		"actions": [
			{"action_type": "purchase", "value": "3"},
			{"action_type": "link_click", "value": "50"}
		],
		"cost_per_action_type": [
			{"action_type": "purchase", "value": "41.15"}
		]
	}`

	var row InsightRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if row.CampaignID != "c1" || row.AccountCurrency != "BRL" {
		t.Errorf("identity fields wrong: %+v", row)
	}
	if got := row.Field("spend"); got != 123.45 {
		t.Errorf("spend = %v, want 123.45", got)
	}
	if got := row.Field("ctr"); got != 2.5 {
		t.Errorf("ctr = %v, want 2.5", got)
	}
	if got := row.Field("missing"); got != 0 {
		t.Errorf("missing field = %v, want 0", got)
	}
	if row.Actions["purchase"] != 3 || row.Actions["link_click"] != 50 {
		t.Errorf("actions map wrong: %v", row.Actions)
	}
	if row.CostPerActionType["purchase"] != 41.15 {
		t.Errorf("cost map wrong: %v", row.CostPerActionType)
	}
}

func TestCampaignBudgetParsing(t *testing.T) {
	raw := `{"id":"c1","name":"N","status":"ACTIVE","daily_budget":"5000","lifetime_budget":"120000"}`
	var c Campaign
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if float64(c.DailyBudget) != 5000 {
		t.Errorf("daily_budget = %v, want 5000 (minor units)", c.DailyBudget)
	}
	if float64(c.LifetimeBudget) != 120000 {
		t.Errorf("lifetime_budget = %v, want 120000", c.LifetimeBudget)
	}
}

func TestGraphErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       GraphError
		rateLimit bool
		noRetry   bool
	}{
		{"throttle code 4", GraphError{Code: 4}, true, false},
		{"throttle code 613", GraphError{Code: 613}, true, false},
		{"throttle subcode", GraphError{Code: 1, Subcode: 2446079}, true, false},
		{"invalid token", GraphError{Code: 190}, false, true},
		{"permission", GraphError{Code: 200}, false, true},
		{"unknown object", GraphError{Code: 100, Subcode: 33}, false, true},
		{"generic", GraphError{Code: 1}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.RateLimited(); got != tt.rateLimit {
				t.Errorf("RateLimited() = %v, want %v", got, tt.rateLimit)
			}
			if got := tt.err.NoRetry(); got != tt.noRetry {
				t.Errorf("NoRetry() = %v, want %v", got, tt.noRetry)
			}
		})
	}
}
