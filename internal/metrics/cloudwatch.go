// Package metrics publishes service telemetry to AWS CloudWatch: API request
// latency and count, upstream provider failures and response cache results.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"weatherproxy/internal/config"
	"weatherproxy/internal/types"
)

// putTimeout bounds a single PutMetricData call.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Collector is everything the service reports. It satisfies
// core.MetricsCollector, external.FailureRecorder and weather.CacheRecorder.
type Collector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordUpstreamFailure(ctx context.Context, provider, endpoint string, status int)
	RecordCacheResult(ctx context.Context, cache string, hit bool)
}

var (
	_ Collector = (*CloudWatchCollector)(nil)
	_ Collector = NopCollector{}
)

// CloudWatchCollector emits metrics synchronously. Publishing failures are
// logged and never surface to callers.
//
// Metrics emitted:
//   - APILatency, APIRequestCount: Dims {Endpoint, Method, Status}
//   - ExternalAPIFailure: Dims {Provider, Endpoint, Status}
//   - CacheHit / CacheMiss: Dims {Cache}
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchCollector creates a collector publishing to namespace. An
// empty namespace falls back to types.MetricNamespace.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{client: client, namespace: namespace, logger: logger}
}

// New returns a CloudWatch-backed collector when metrics are enabled and a
// NopCollector otherwise.
func New(ctx context.Context, cfg config.ObservabilityConfig, logger *slog.Logger) (Collector, error) {
	if !cfg.EnableMetrics {
		return NopCollector{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewCloudWatchCollector(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger), nil
}

// RecordRequest emits request latency (milliseconds) and a request count.
func (m *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimEndpoint, endpoint),
		dim(types.DimMethod, method),
		dim(types.DimStatus, status),
	}
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	m.put(ctx, "failed to record request metric",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

// RecordUpstreamFailure emits one ExternalAPIFailure count.
func (m *CloudWatchCollector) RecordUpstreamFailure(ctx context.Context, provider, endpoint string, status int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), putTimeout)
	defer cancel()

	m.put(ctx, "failed to record upstream failure metric", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricExternalAPIFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimProvider, provider),
			dim(types.DimEndpoint, endpoint),
			dim(types.DimStatus, strconv.Itoa(status)),
		},
	})
}

// RecordCacheResult emits CacheHit or CacheMiss for the named cache.
func (m *CloudWatchCollector) RecordCacheResult(ctx context.Context, cache string, hit bool) {
	name := types.MetricCacheMiss
	if hit {
		name = types.MetricCacheHit
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), putTimeout)
	defer cancel()

	m.put(ctx, "failed to record cache metric", cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimCache, cache)},
	})
}

func (m *CloudWatchCollector) put(ctx context.Context, failMsg string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error(failMsg,
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NopCollector discards every metric. It is used when ENABLE_METRICS is off.
type NopCollector struct{}

func (NopCollector) RecordRequest(_, _, _ string, _ time.Duration) {}
func (NopCollector) RecordUpstreamFailure(_ context.Context, _, _ string, _ int) {}
func (NopCollector) RecordCacheResult(_ context.Context, _ string, _ bool) {}
