package telemetry

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
)

type mockTraceCollector struct {
	collectortrace.UnimplementedTraceServiceServer

	mu    sync.Mutex
	spans []*tracepb.Span
}

func startMockTraceCollector(t *testing.T) (*mockTraceCollector, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start OTLP listener: %v", err)
	}

	collector := &mockTraceCollector{}
	server := grpc.NewServer()
	collectortrace.RegisterTraceServiceServer(server, collector)

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(func() {
		server.Stop()
		_ = lis.Close()
	})

	return collector, lis.Addr().String()
}

func (m *mockTraceCollector) Export(_ context.Context, req *collectortrace.ExportTraceServiceRequest) (*collectortrace.ExportTraceServiceResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rs := range req.ResourceSpans {
		for _, scope := range rs.ScopeSpans {
			m.spans = append(m.spans, scope.Spans...)
		}
	}
	return &collectortrace.ExportTraceServiceResponse{}, nil
}

func (m *mockTraceCollector) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.spans))
	for _, s := range m.spans {
		names = append(names, s.Name)
	}
	return names
}

func TestSetupProviderWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupProvider(context.Background(), Config{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupProviderExportsSpans(t *testing.T) {
	collector, addr := startMockTraceCollector(t)

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	shutdown, err := SetupProvider(ctx, Config{
		ServiceName: "polis-cipher-test",
		Endpoint:    addr,
		Insecure:    true,
		Environment: "test",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, span := StartCodecSpan(ctx, "encode", 11)
	span.End()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	names := collector.names()
	if len(names) != 1 || names[0] != "cipher.encode" {
		t.Fatalf("expected one cipher.encode span, got %v", names)
	}
}
