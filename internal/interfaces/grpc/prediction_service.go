package grpc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turtacn/DataMention-Intelligence/internal/application/prediction"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/cooccur"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/evaluation"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// PredictionServiceName is the fully qualified gRPC service name.
const PredictionServiceName = "dmi.v1.Prediction"

const maxTopK = 100

// PredictRequest ranks the datasets of one publication. An empty ID skips
// indexing, graph and event side effects.
type PredictRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

func (r *PredictRequest) Validate() error {
	if r.Text == "" {
		return errors.NewInvalidInput("text is required")
	}
	return validateTopK(r.TopK)
}

// PredictSnippetRequest ranks the datasets of one snippet.
type PredictSnippetRequest struct {
	Snippet string `json:"snippet"`
	TopK    int    `json:"top_k"`
}

func (r *PredictSnippetRequest) Validate() error {
	if r.Snippet == "" {
		return errors.NewInvalidInput("snippet is required")
	}
	return validateTopK(r.TopK)
}

type PredictSnippetResponse struct {
	Datasets []cooccur.ScoredDataset `json:"datasets"`
}

// EvaluateRequest scores one ranking against its ground truth.
type EvaluateRequest struct {
	YTrue []string `json:"y_true"`
	YPred []string `json:"y_pred"`
}

// ModelRequest is empty; Model takes no arguments.
type ModelRequest struct{}

// ReloadModelRequest loads Key, or the latest model when Key is empty.
type ReloadModelRequest struct {
	Key string `json:"key"`
}

func validateTopK(k int) error {
	if k < 0 || k > maxTopK {
		return errors.NewInvalidInput("top_k out of range").WithDetail(fmt.Sprintf("got %d, want 0..%d", k, maxTopK))
	}
	return nil
}

// PredictionServer is the server side of dmi.v1.Prediction.
type PredictionServer interface {
	Predict(ctx context.Context, req *PredictRequest) (*prediction.Prediction, error)
	PredictSnippet(ctx context.Context, req *PredictSnippetRequest) (*PredictSnippetResponse, error)
	Evaluate(ctx context.Context, req *EvaluateRequest) (*evaluation.Result, error)
	Model(ctx context.Context, req *ModelRequest) (*prediction.ModelInfo, error)
	ReloadModel(ctx context.Context, req *ReloadModelRequest) (*prediction.ModelInfo, error)
}

type predictionServer struct {
	svc prediction.Service
}

// NewPredictionServer serves svc over gRPC.
func NewPredictionServer(svc prediction.Service) PredictionServer {
	return &predictionServer{svc: svc}
}

func (s *predictionServer) Predict(ctx context.Context, req *PredictRequest) (*prediction.Prediction, error) {
	p, err := s.svc.PredictDocument(ctx, req.ID, req.Text, req.TopK)
	if err != nil {
		return nil, toStatus(err)
	}
	return p, nil
}

func (s *predictionServer) PredictSnippet(ctx context.Context, req *PredictSnippetRequest) (*PredictSnippetResponse, error) {
	scores, err := s.svc.PredictSnippet(ctx, req.Snippet, req.TopK)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PredictSnippetResponse{Datasets: scores}, nil
}

func (s *predictionServer) Evaluate(_ context.Context, req *EvaluateRequest) (*evaluation.Result, error) {
	res, err := evaluation.Evaluate(req.YTrue, req.YPred)
	if err != nil {
		return nil, toStatus(err)
	}
	return &res, nil
}

func (s *predictionServer) Model(context.Context, *ModelRequest) (*prediction.ModelInfo, error) {
	info := s.svc.Model()
	return &info, nil
}

func (s *predictionServer) ReloadModel(ctx context.Context, req *ReloadModelRequest) (*prediction.ModelInfo, error) {
	if err := s.svc.LoadModel(ctx, req.Key); err != nil {
		return nil, toStatus(err)
	}
	info := s.svc.Model()
	return &info, nil
}

// PredictionServiceDesc describes dmi.v1.Prediction for grpc.Server.
var PredictionServiceDesc = grpc.ServiceDesc{
	ServiceName: PredictionServiceName,
	HandlerType: (*PredictionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: unaryHandler("Predict", PredictionServer.Predict)},
		{MethodName: "PredictSnippet", Handler: unaryHandler("PredictSnippet", PredictionServer.PredictSnippet)},
		{MethodName: "Evaluate", Handler: unaryHandler("Evaluate", PredictionServer.Evaluate)},
		{MethodName: "Model", Handler: unaryHandler("Model", PredictionServer.Model)},
		{MethodName: "ReloadModel", Handler: unaryHandler("ReloadModel", PredictionServer.ReloadModel)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dmi/v1/prediction",
}

// unaryHandler adapts one PredictionServer method to grpc.MethodDesc.
func unaryHandler[Req, Resp any](method string, call func(PredictionServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + PredictionServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode %s request: %v", method, err)
		}
		if interceptor == nil {
			return call(srv.(PredictionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PredictionServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PredictionClient calls dmi.v1.Prediction with the JSON codec.
type PredictionClient struct {
	cc grpc.ClientConnInterface
}

func NewPredictionClient(cc grpc.ClientConnInterface) *PredictionClient {
	return &PredictionClient{cc: cc}
}

func (c *PredictionClient) Predict(ctx context.Context, req *PredictRequest, opts ...grpc.CallOption) (*prediction.Prediction, error) {
	out := new(prediction.Prediction)
	return out, c.invoke(ctx, "Predict", req, out, opts)
}

func (c *PredictionClient) PredictSnippet(ctx context.Context, req *PredictSnippetRequest, opts ...grpc.CallOption) (*PredictSnippetResponse, error) {
	out := new(PredictSnippetResponse)
	return out, c.invoke(ctx, "PredictSnippet", req, out, opts)
}

func (c *PredictionClient) Evaluate(ctx context.Context, req *EvaluateRequest, opts ...grpc.CallOption) (*evaluation.Result, error) {
	out := new(evaluation.Result)
	return out, c.invoke(ctx, "Evaluate", req, out, opts)
}

func (c *PredictionClient) Model(ctx context.Context, opts ...grpc.CallOption) (*prediction.ModelInfo, error) {
	out := new(prediction.ModelInfo)
	return out, c.invoke(ctx, "Model", &ModelRequest{}, out, opts)
}

func (c *PredictionClient) ReloadModel(ctx context.Context, req *ReloadModelRequest, opts ...grpc.CallOption) (*prediction.ModelInfo, error) {
	out := new(prediction.ModelInfo)
	return out, c.invoke(ctx, "ReloadModel", req, out, opts)
}

func (c *PredictionClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+PredictionServiceName+"/"+method, in, out, opts...)
}

// toStatus maps an application error to a gRPC status. Server-side failures
// are masked the way the HTTP API masks them.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	var ae *errors.AppError
	if !stderrors.As(err, &ae) {
		return status.Error(codes.Internal, "internal server error")
	}
	httpStatus := errors.HTTPStatusForCode(ae.Code)
	msg := ae.Message
	if httpStatus >= http.StatusInternalServerError && httpStatus != http.StatusServiceUnavailable {
		msg = errors.DefaultMessageForCode(ae.Code)
	}
	return status.Error(codeForHTTPStatus(httpStatus), ae.Code.String()+": "+msg)
}

func codeForHTTPStatus(s int) codes.Code {
	switch s {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
