package grpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	"github.com/turtacn/DataMention-Intelligence/internal/application/prediction"
	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const bufSize = 1 << 20

type testServer struct {
	srv  *Server
	conn *grpc.ClientConn
	log  *testutil.MockLogger
}

func newPredictionService(t *testing.T, loaded bool) prediction.Service {
	t.Helper()
	seg := mention.SegmenterFunc(func(text string) []string { return strings.Split(text, "|") })
	ex, err := mention.NewExtractor(mention.NewLexicon([]string{"ADNI", "NHANES"}, nil), seg)
	require.NoError(t, err)
	svc := prediction.NewService(extraction.NewService(ex, nil), nil)
	if loaded {
		svc.SetModel(cooccur.Learn([]cooccur.TrainingExample{
			{Snippet: "ADNI cohort imaging", Datasets: []string{"adni"}},
			{Snippet: "NHANES survey nutrition", Datasets: []string{"nhanes"}},
		}), "models/test.json")
	}
	return svc
}

// startServer serves impl over an in-memory listener.
func startServer(t *testing.T, impl PredictionServer) *testServer {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	log := testutil.NewMockLogger()
	srv, err := NewServer(config.GRPCConfig{Reflection: true}, WithListener(lis), WithLogger(log))
	require.NoError(t, err)
	srv.RegisterService(&PredictionServiceDesc, impl)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = srv.Stop(context.Background())
		assert.NoError(t, <-done)
	})
	return &testServer{srv: srv, conn: conn, log: log}
}

func callContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_Health(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, true)))
	client := healthpb.NewHealthClient(ts.conn)

	for _, svc := range []string{"", PredictionServiceName} {
		resp, err := client.Check(callContext(t), &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err, svc)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status, svc)
	}

	_, err := client.Check(callContext(t), &healthpb.HealthCheckRequest{Service: "dmi.v1.Unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.False(t, ts.log.HasMessage("info", "grpc request"), "health checks are not logged")
}

func TestServer_StopBeforeStart(t *testing.T) {
	lis := bufconn.Listen(bufSize)
	srv, err := NewServer(config.GRPCConfig{}, WithListener(lis))
	require.NoError(t, err)
	require.NoError(t, srv.Stop(context.Background()))

	// A server that never started can still be stopped, and twice.
	require.NoError(t, srv.Stop(context.Background()))
}

func TestServer_StartTwice(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, true)))
	// Wait for the first Start to own the listener.
	_, err := healthpb.NewHealthClient(ts.conn).Check(callContext(t), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Error(t, ts.srv.Start())
}

func TestPrediction_Predict(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, true)))
	client := NewPredictionClient(ts.conn)

	p, err := client.Predict(callContext(t), &PredictRequest{Text: "We used the ADNI imaging data.", TopK: 1})
	require.NoError(t, err)
	require.Len(t, p.Datasets, 1)
	assert.Equal(t, "adni", p.Datasets[0].Dataset)
	assert.Equal(t, "models/test.json", p.ModelKey)
	assert.True(t, ts.log.HasMessage("info", "grpc request"))
}

func TestPrediction_PredictSnippet(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, true)))
	resp, err := NewPredictionClient(ts.conn).PredictSnippet(callContext(t), &PredictSnippetRequest{Snippet: "NHANES nutrition"})
	require.NoError(t, err)
	require.Len(t, resp.Datasets, 2)
	assert.Equal(t, "nhanes", resp.Datasets[0].Dataset)
}

func TestPrediction_Validation(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, true)))
	client := NewPredictionClient(ts.conn)

	_, err := client.Predict(callContext(t), &PredictRequest{Text: "ADNI", TopK: 1000})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), errors.ErrCodeInvalidInput.String())

	_, err = client.PredictSnippet(callContext(t), &PredictSnippetRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPrediction_NoModel(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, false)))
	client := NewPredictionClient(ts.conn)

	_, err := client.Predict(callContext(t), &PredictRequest{Text: "ADNI"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), errors.ErrCodeModelNotLoaded.String())
	assert.True(t, ts.log.HasMessage("warn", "grpc request failed"))

	info, err := client.Model(callContext(t))
	require.NoError(t, err)
	assert.False(t, info.Loaded)
}

func TestPrediction_Evaluate(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, false)))
	client := NewPredictionClient(ts.conn)

	res, err := client.Evaluate(callContext(t), &EvaluateRequest{
		YTrue: []string{"a", "b"},
		YPred: []string{"a", "x", "b", "y", "z"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Consumed)
	assert.InDelta(t, 2.0/3.0, res.Precision, 1e-9)

	_, err = client.Evaluate(callContext(t), &EvaluateRequest{YTrue: []string{"a"}, YPred: []string{"a"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPrediction_ModelAndReload(t *testing.T) {
	ts := startServer(t, NewPredictionServer(newPredictionService(t, true)))
	client := NewPredictionClient(ts.conn)

	info, err := client.Model(callContext(t))
	require.NoError(t, err)
	assert.True(t, info.Loaded)
	assert.Equal(t, "models/test.json", info.Key)

	// No model source is configured, so a reload cannot succeed.
	_, err = client.ReloadModel(callContext(t), &ReloadModelRequest{Key: "models/other.json"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

type panickingServer struct{ PredictionServer }

func (panickingServer) Model(context.Context, *ModelRequest) (*prediction.ModelInfo, error) {
	panic("boom")
}

func TestServer_RecoversPanics(t *testing.T) {
	ts := startServer(t, panickingServer{NewPredictionServer(newPredictionService(t, true))})

	_, err := NewPredictionClient(ts.conn).Model(callContext(t))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, ts.log.HasMessage("error", "grpc panic recovered"))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		msg  string
	}{
		{"invalid input", errors.NewInvalidInput("text is empty"), codes.InvalidArgument, "text is empty"},
		{"not found", errors.New(errors.ErrCodeModelNotFound, "models/x.json"), codes.NotFound, "models/x.json"},
		{"unavailable keeps message", errors.New(errors.ErrCodeModelNotLoaded, "load a model first"), codes.Unavailable, "load a model first"},
		{"server error is masked", errors.New(errors.ErrCodeDatabaseError, "password=hunter2 rejected"), codes.Internal, "database error"},
		{"plain error", assert.AnError, codes.Internal, "internal server error"},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded, ""},
		{"status passes through", status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied, "no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := status.Convert(toStatus(tt.err))
			assert.Equal(t, tt.code, st.Code())
			assert.Contains(t, st.Message(), tt.msg)
			assert.NotContains(t, st.Message(), "hunter2")
		})
	}
	assert.NoError(t, toStatus(nil))
}

func TestSplitMethodName(t *testing.T) {
	svc, method := splitMethodName("/dmi.v1.Prediction/Predict")
	assert.Equal(t, PredictionServiceName, svc)
	assert.Equal(t, "Predict", method)

	svc, method = splitMethodName("Predict")
	assert.Equal(t, "unknown", svc)
	assert.Equal(t, "Predict", method)
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&PredictRequest{Text: "ADNI", TopK: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"","text":"ADNI","top_k":2}`, string(data))

	var got PredictRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, 2, got.TopK)
	assert.Equal(t, CodecName, c.Name())
}
