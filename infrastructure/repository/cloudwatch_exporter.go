package repository

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/infrastructure/config"
)

// CloudWatchExporter implements MetricsExporter using CloudWatch PutMetricData.
type CloudWatchExporter struct {
	client    *cloudwatch.CloudWatch
	namespace string
}

// NewCloudWatchExporter creates an exporter publishing to the configured
// namespace and region.
func NewCloudWatchExporter(cfg *config.CloudWatchConfig) (repository.MetricsExporter, error) {
	if cfg == nil {
		return nil, domain.ErrExport("initialize", "cloudwatch config is nil")
	}
	if cfg.Region == "" {
		return nil, domain.ErrExport("initialize", "cloudwatch region is empty")
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           cfg.AWSProfile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, domain.ErrExportWithCause("initialize", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "SwarmOps/Telemetry"
	}

	return &CloudWatchExporter{
		client:    cloudwatch.New(sess, &aws.Config{Region: aws.String(cfg.Region)}),
		namespace: namespace,
	}, nil
}

// SendGauge publishes one datum. Labels become CloudWatch dimensions.
func (e *CloudWatchExporter) SendGauge(ctx context.Context, name string, value float64, labels map[string]string) error {
	dimensions := make([]*cloudwatch.Dimension, 0, len(labels))
	for k, v := range labels {
		dimensions = append(dimensions, &cloudwatch.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(e.namespace),
		MetricData: []*cloudwatch.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	}

	if _, err := e.client.PutMetricDataWithContext(ctx, input); err != nil {
		return domain.ErrExportWithCause("cloudwatch", err)
	}
	return nil
}
