package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/fraudguard/internal/bus"
	"github.com/opensource-finance/fraudguard/internal/cache"
	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/repository"
	"github.com/opensource-finance/fraudguard/internal/session"
	"github.com/opensource-finance/fraudguard/internal/telemetry"
	"github.com/opensource-finance/fraudguard/internal/worker"
)

type testEnv struct {
	server   *Server
	repo     domain.Repository
	sessions *session.Store
	metrics  *telemetry.Metrics
}

// createTestServer wires the API to a SQLite repository, an LRU cache and
// a channel bus served by a running trainer.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	})
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(1000)
	b := bus.NewChannelBus(10)
	t.Cleanup(func() { b.Close() })

	sessions := session.NewStore(time.Hour, 10)
	metrics := telemetry.New()

	opts := model.DefaultOptions()
	opts.Trees = 10
	trainer := worker.NewTrainer(b, repo, c, sessions, metrics, worker.Config{
		InstanceID: "test",
		JobTTL:     time.Hour,
		Options:    opts,
	})
	if err := trainer.Start(); err != nil {
		t.Fatalf("start trainer: %v", err)
	}
	t.Cleanup(func() { trainer.Stop() })

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
		MaxUploadMB:  1,
	}
	server := NewServer(cfg, repo, c, b, sessions, metrics, Options{
		Version:    "test-v1",
		InstanceID: "test",
		SampleDir:  t.TempDir(),
	})
	return &testEnv{server: server, repo: repo, sessions: sessions, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return v
}

func (e *testEnv) createSession(t *testing.T, d string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Domain: d})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", rr.Code, rr.Body.String())
	}
	return decode[SessionResponse](t, rr).ID
}

// mobileCSV has 40 rows, half of them large TRANSFER frauds.
func mobileCSV() string {
	var sb strings.Builder
	sb.WriteString("amount,type,isFraud\n")
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&sb, "%d,TRANSFER,1\n", 9000+i)
			continue
		}
		fmt.Fprintf(&sb, "%d,PAYMENT,0\n", 10+i)
	}
	return sb.String()
}

func TestHealthEndpoint(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[map[string]string](t, rr)
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", resp["status"])
	}
	if resp["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", resp["version"])
	}
	if rr.Header().Get(RequestIDHeader) == "" || rr.Header().Get(TraceIDHeader) == "" {
		t.Error("expected request and trace id headers")
	}

	rr = env.do(t, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("expected request id req-123, got %q", got)
	}
	// no tracer provider is installed, so the trace id falls back
	if got := rr.Header().Get(TraceIDHeader); got != "req-123" {
		t.Errorf("expected trace id req-123, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := createTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := createTestServer(t)

	env.do(t, http.MethodGet, "/domains", nil)
	rr := env.do(t, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "fraudguard_http_requests_total") {
		t.Error("expected http request counter in exposition")
	}
	if !strings.Contains(body, `route="/domains"`) {
		t.Error("expected requests labelled by route pattern")
	}
}

func TestDomainEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("List", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/domains", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		resp := decode[struct {
			Domains []DomainSummary `json:"domains"`
			Count   int             `json:"count"`
		}](t, rr)
		if resp.Count != 3 || len(resp.Domains) != 3 {
			t.Errorf("expected 3 domains, got %d", resp.Count)
		}
	})

	t.Run("SchemaByLabel", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/domains/credit-card/schema", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		resp := decode[SchemaResponse](t, rr)
		if resp.Target != "is_fraud" {
			t.Errorf("expected target is_fraud, got %s", resp.Target)
		}
		if resp.Fitted {
			t.Error("schema without session should not be fitted")
		}
		if got := resp.Categories["category"]; len(got) != 1 || got[0] != "Unknown" {
			t.Errorf("expected Unknown placeholder, got %v", got)
		}
	})

	t.Run("UnknownDomain", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/domains/Insurance/schema", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownSession", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/domains/CreditCard/schema?session=missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	env := createTestServer(t)

	t.Run("CreateValidation", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			body string
			want int
		}{
			{"InvalidJSON", "not-json", http.StatusBadRequest},
			{"MissingDomain", "{}", http.StatusBadRequest},
			{"UnknownDomain", `{"domain":"Insurance"}`, http.StatusBadRequest},
		} {
			t.Run(tc.name, func(t *testing.T) {
				rr := env.do(t, http.MethodPost, "/sessions", tc.body)
				if rr.Code != tc.want {
					t.Errorf("expected status %d, got %d", tc.want, rr.Code)
				}
			})
		}
	})

	id := env.createSession(t, "Mobile Transaction")

	rr := env.do(t, http.MethodGet, "/sessions/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[SessionResponse](t, rr)
	if resp.Domain != domain.MobileTransaction {
		t.Errorf("expected MobileTransaction, got %s", resp.Domain)
	}
	if resp.Trained {
		t.Error("new session should have no model")
	}

	rr = env.do(t, http.MethodDelete, "/sessions/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/sessions/"+id, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodDelete, "/sessions/"+id, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on second delete, got %d", rr.Code)
	}
}

func TestDatasetEndpoints(t *testing.T) {
	env := createTestServer(t)
	id := env.createSession(t, "MobileTransaction")

	t.Run("PreviewBeforeLoad", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/sessions/"+id+"/dataset", nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})

	t.Run("RawCSVUpload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/dataset", strings.NewReader(mobileCSV()))
		req.Header.Set("Content-Type", "text/csv")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		resp := decode[DatasetResponse](t, rr)
		if resp.Rows != 40 {
			t.Errorf("expected 40 rows, got %d", resp.Rows)
		}
		if resp.Source != "upload.csv" {
			t.Errorf("expected source upload.csv, got %s", resp.Source)
		}
	})

	t.Run("MultipartUpload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "mobile.csv")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("amount,type,isFraud\n1,PAYMENT,0\n2,TRANSFER,1\n"))
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/dataset", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		resp := decode[DatasetResponse](t, rr)
		if resp.Rows != 2 || resp.Source != "mobile.csv" {
			t.Errorf("unexpected upload summary %+v", resp)
		}
	})

	t.Run("EmptyUpload", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/dataset", "")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		big := "amount\n" + strings.Repeat("1\n", 1<<20)
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/dataset", big)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected status 413, got %d", rr.Code)
		}
	})

	t.Run("MissingSample", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/dataset/sample", nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})

	t.Run("Preview", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/sessions/"+id+"/dataset", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		resp := decode[struct {
			Preview struct {
				Rows    int              `json:"rows"`
				Head    []map[string]any `json:"head"`
				Profile []map[string]any `json:"profile"`
			} `json:"preview"`
		}](t, rr)
		if resp.Preview.Rows != 2 || len(resp.Preview.Head) != 2 {
			t.Errorf("unexpected preview %+v", resp.Preview)
		}
		if len(resp.Preview.Profile) == 0 {
			t.Error("expected a numeric profile")
		}
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	env := createTestServer(t)
	id := env.createSession(t, "MobileTransaction")

	csv := "txn_amount,old_bal_orig,new_bal_orig,isFraud\n100,500,400,0\n"
	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/dataset", csv)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload: status %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/normalize", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[NormalizeResponse](t, rr)
	want := []string{"amount", "oldbalanceOrg", "newbalanceOrig"}
	if strings.Join(resp.InternalColumnsFound, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, resp.InternalColumnsFound)
	}
	want = []string{"Large Transfer Detection", "Origin Account Takeover Logic"}
	if strings.Join(resp.Capabilities, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, resp.Capabilities)
	}

	// the session keeps the raw table
	sess, err := env.sessions.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Table.Has("isFraud") {
		t.Error("normalize should not replace the session dataset")
	}
}

func TestTrainPredictFlow(t *testing.T) {
	env := createTestServer(t)
	id := env.createSession(t, "MobileTransaction")

	t.Run("TrainWithoutDataset", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/train", nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})

	t.Run("PredictBeforeTraining", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/predict", PredictRequest{Inputs: domain.TransactionInput{"amount": 1.0}})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/dataset", mobileCSV())
	if rr.Code != http.StatusOK {
		t.Fatalf("upload: status %d: %s", rr.Code, rr.Body.String())
	}

	t.Run("UnknownModelType", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/train", TrainRequest{ModelType: "SVM"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/train", TrainRequest{ModelType: "rf"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	accepted := decode[TrainResponse](t, rr)
	if accepted.JobID == "" || accepted.ModelKind != string(model.RandomForestKind) {
		t.Fatalf("unexpected train response %+v", accepted)
	}

	var job domain.TrainingJob
	deadline := time.Now().Add(10 * time.Second)
	for {
		rr = env.do(t, http.MethodGet, "/jobs/"+accepted.JobID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("poll job: status %d", rr.Code)
		}
		job = decode[domain.TrainingJob](t, rr)
		if job.Status == domain.JobSucceeded || job.Status == domain.JobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s after deadline", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.Status != domain.JobSucceeded {
		t.Fatalf("expected job to succeed, got %s: %s", job.Status, job.Error)
	}

	t.Run("SessionHasModel", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/sessions/"+id, nil)
		resp := decode[SessionResponse](t, rr)
		if !resp.Trained || resp.Metrics == nil {
			t.Errorf("expected trained session with metrics, got %+v", resp)
		}
		if resp.RunID != job.RunID {
			t.Errorf("expected run %s, got %s", job.RunID, resp.RunID)
		}
	})

	t.Run("SchemaOffersFittedClasses", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/domains/MobileTransaction/schema?session="+id, nil)
		resp := decode[SchemaResponse](t, rr)
		if !resp.Fitted {
			t.Error("expected fitted schema")
		}
		got := strings.Join(resp.Categories["type"], ",")
		if got != "PAYMENT,TRANSFER" {
			t.Errorf("expected fitted type classes, got %s", got)
		}
	})

	t.Run("Predict", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/predict", PredictRequest{
			Inputs: domain.TransactionInput{"amount": 9010.0, "type": "TRANSFER"},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		resp := decode[PredictResponse](t, rr)
		if resp.Probability < 0 || resp.Probability > 1 {
			t.Errorf("probability out of range: %f", resp.Probability)
		}
		if resp.Action != decision.ActionForProbability(resp.Probability) {
			t.Errorf("action %s does not match probability %f", resp.Action, resp.Probability)
		}
		if len(resp.Advice) != 1 {
			t.Errorf("expected one advice line, got %v", resp.Advice)
		}
	})

	t.Run("PredictRequiresInputs", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/predict", "{}")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("AdviceLowRisk", func(t *testing.T) {
		risk := 0.1
		rr := env.do(t, http.MethodPost, "/sessions/"+id+"/advice", AdviceRequest{
			Inputs:      domain.TransactionInput{"amount": 20.0},
			CurrentRisk: &risk,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		resp := decode[struct {
			Advice []string `json:"advice"`
		}](t, rr)
		if len(resp.Advice) != 1 || resp.Advice[0] != model.AdviceSafe {
			t.Errorf("expected safe advice, got %v", resp.Advice)
		}
	})

	t.Run("Runs", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/runs?session="+id, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		list := decode[struct {
			Runs  []domain.TrainingRun `json:"runs"`
			Count int                  `json:"count"`
		}](t, rr)
		if list.Count != 1 || list.Runs[0].ID != job.RunID {
			t.Fatalf("expected the finished run, got %+v", list)
		}

		rr = env.do(t, http.MethodGet, "/runs/"+job.RunID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		run := decode[domain.TrainingRun](t, rr)
		if run.Metrics == nil || run.Rows != 40 {
			t.Errorf("unexpected run %+v", run)
		}

		rr = env.do(t, http.MethodGet, "/runs/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodGet, "/runs?limit=-1", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestTrainWithoutQueue(t *testing.T) {
	sessions := session.NewStore(time.Hour, 10)
	server := NewServer(domain.ServerConfig{}, nil, nil, nil, sessions, nil, Options{})
	env := &testEnv{server: server, sessions: sessions}

	id := env.createSession(t, "MobileTransaction")
	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/dataset", mobileCSV())
	if rr.Code != http.StatusOK {
		t.Fatalf("upload: status %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/train", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/jobs/anything", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/runs", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/jobs/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := createTestServer(t)

	drain := AnalyzeRequest{
		Domain: "Mobile Transaction",
		Inputs: domain.TransactionInput{"oldbalanceOrg": 500.0, "newbalanceOrig": 0.0, "amount": 100.0},
	}

	rr := env.do(t, http.MethodPost, "/analyze", drain)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	first := decode[AnalyzeResponse](t, rr)
	if first.Score != 100 || first.Action != domain.ActionBlock {
		t.Errorf("expected 100/BLOCK, got %d/%s", first.Score, first.Action)
	}
	if first.DecisionType != decision.MobileDecisionType {
		t.Errorf("unexpected decision type %s", first.DecisionType)
	}
	if len(first.Factors) != 2 || first.Factors[0].Label != "Wallet Drain" {
		t.Errorf("unexpected factors %+v", first.Factors)
	}
	if first.Cached {
		t.Error("first analysis should not be cached")
	}
	if first.Metadata.Version != "test-v1" {
		t.Errorf("expected version test-v1, got %s", first.Metadata.Version)
	}

	t.Run("Memoised", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", drain)
		second := decode[AnalyzeResponse](t, rr)
		if !second.Cached {
			t.Error("expected cached analysis")
		}
		if second.AnalysisID != first.AnalysisID {
			t.Errorf("expected analysis %s, got %s", first.AnalysisID, second.AnalysisID)
		}
	})

	t.Run("Audited", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/analyses/"+first.AnalysisID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		a := decode[domain.Analysis](t, rr)
		if a.Result.Score != 100 || a.Domain != "Mobile Transaction" {
			t.Errorf("unexpected stored analysis %+v", a)
		}

		rr = env.do(t, http.MethodGet, "/analyses/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("UnknownDomainFallsBack", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{
			Domain: "Insurance",
			Inputs: domain.TransactionInput{"amt": 1e9},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		resp := decode[AnalyzeResponse](t, rr)
		if resp.Score != 0 || resp.DecisionType != decision.DefaultDecisionType || resp.Action != domain.ActionApprove {
			t.Errorf("unexpected fallback %+v", resp.ScoreResult)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", "not-json")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNoFraudFound, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", domain.ErrSchemaMismatch), http.StatusUnprocessableEntity},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrModelNotFitted, http.StatusConflict},
		{domain.ErrUnknownDomain, http.StatusBadRequest},
		{domain.ErrUnknownModelKind, http.StatusBadRequest},
		{domain.ErrUnknownPatternCatalog, http.StatusBadRequest},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAnalysisKey(t *testing.T) {
	a, _ := analysisKey("CreditCard", domain.TransactionInput{"amt": 1.0, "category": "tech"})
	b, _ := analysisKey("CreditCard", domain.TransactionInput{"category": "tech", "amt": 1.0})
	c, _ := analysisKey("MobileTransaction", domain.TransactionInput{"amt": 1.0, "category": "tech"})
	if a != b {
		t.Error("key should not depend on map order")
	}
	if a == c {
		t.Error("key should depend on the domain")
	}
}
