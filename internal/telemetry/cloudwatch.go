package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"subscribe/internal/types"
)

// cloudWatchTimeout bounds a single PutMetricData call so a slow CloudWatch
// endpoint cannot hold a request open.
const cloudWatchTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector publishes metrics with PutMetricData.
//
// Metrics emitted:
//   - APIRequestCount: Dims {Endpoint, Method, Status}
//   - APILatency: Dims {Endpoint, Method} in milliseconds
//   - SignupOutcome: Dims {Outcome}
//
// Publishing failures are logged and never surface to callers.
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Collector = (*CloudWatchCollector)(nil)

// NewCloudWatchCollector creates a collector for namespace. An empty
// namespace falls back to types.MetricNamespace.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{client: client, namespace: namespace, logger: logger}
}

// RecordRequest emits the request count and latency in one PutMetricData call.
func (c *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricAPIRequestCount),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					dimension(types.DimEndpoint, endpoint),
					dimension(types.DimMethod, method),
					dimension(types.DimStatus, status),
				},
			},
			{
				MetricName: aws.String(types.MetricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					dimension(types.DimEndpoint, endpoint),
					dimension(types.DimMethod, method),
				},
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cloudWatchTimeout)
	defer cancel()
	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Error("failed to record request metric",
			"error", err.Error(),
			"endpoint", endpoint,
			"method", method,
			"status", status,
		)
	}
}

// RecordSignupOutcome emits a SignupOutcome count with the Outcome dimension.
func (c *CloudWatchCollector) RecordSignupOutcome(ctx context.Context, outcome types.SignupOutcome) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricSignupOutcome),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					dimension(types.DimOutcome, string(outcome)),
				},
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cloudWatchTimeout)
	defer cancel()
	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.ErrorContext(ctx, "failed to record signup outcome metric",
			"error", err.Error(),
			"outcome", string(outcome),
		)
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
