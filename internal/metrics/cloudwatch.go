package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"whalesignal/logger"
)

// cloudWatchPublishInterval bounds how often the same metric series is sent.
var cloudWatchPublishInterval = 30 * time.Second

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchOptions configures the publisher. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
type CloudWatchOptions struct {
	Region          string
	Namespace       string
	AccessKeyID     string
	SecretAccessKey string
}

// CloudWatchPublisher forwards numeric metric events to CloudWatch.
type CloudWatchPublisher struct {
	client    cloudWatchAPI
	namespace string
	log       *logger.Entry
	queue     chan Metric
	now       func() time.Time

	mu          sync.Mutex
	lastPublish map[string]time.Time
	handlerID   MetricHandlerID
}

// NewCloudWatchPublisher loads the AWS configuration and builds a publisher.
func NewCloudWatchPublisher(ctx context.Context, opts CloudWatchOptions) (*CloudWatchPublisher, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newCloudWatchPublisher(cloudwatch.NewFromConfig(cfg), opts.Namespace), nil
}

func newCloudWatchPublisher(client cloudWatchAPI, namespace string) *CloudWatchPublisher {
	if namespace == "" {
		namespace = "WhaleSignal"
	}
	return &CloudWatchPublisher{
		client:      client,
		namespace:   namespace,
		log:         logger.GetLogger().WithComponent("cloudwatch"),
		queue:       make(chan Metric, 256),
		now:         time.Now,
		lastPublish: make(map[string]time.Time),
	}
}

// Run subscribes to metric events and publishes them until ctx is done.
func (p *CloudWatchPublisher) Run(ctx context.Context) {
	p.handlerID = RegisterMetricHandler(p.enqueue)
	defer UnregisterMetricHandler(p.handlerID)

	p.log.WithFields(logger.Fields{"namespace": p.namespace}).Info("cloudwatch publisher started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info("cloudwatch publisher stopped")
			return
		case m := <-p.queue:
			p.publish(ctx, m)
		}
	}
}

func (p *CloudWatchPublisher) enqueue(m Metric) {
	select {
	case p.queue <- m:
	default:
		p.log.WithFields(logger.Fields{"metric": m.Name}).Debug("cloudwatch queue full, dropping metric")
	}
}

func (p *CloudWatchPublisher) publish(ctx context.Context, m Metric) {
	value, ok := toFloat64(m.Value)
	if !ok {
		p.log.WithFields(logger.Fields{"metric": m.Name}).Debug("non-numeric metric value; skipping publish")
		return
	}

	dims := dimensions(m)
	key := seriesKey(m.Name, dims)
	now := p.now()

	p.mu.Lock()
	if last, seen := p.lastPublish[key]; seen && now.Sub(last) < cloudWatchPublishInterval {
		p.mu.Unlock()
		return
	}
	p.lastPublish[key] = now
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(m.Name),
			Dimensions: dims,
			Unit:       metricUnit(m.Fields),
			Value:      aws.Float64(value),
			Timestamp:  aws.Time(m.Timestamp),
		}},
	})
	if err != nil {
		p.log.WithError(err).Warn("failed to publish CloudWatch metric")
		return
	}
	p.log.WithFields(logger.Fields{"metric": m.Name}).Debug("published metric to CloudWatch")
}

func dimensions(m Metric) []cwtypes.Dimension {
	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(m.Component)}}
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		if k != "unit" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := m.Fields[k].(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}
	return dims
}

func seriesKey(name string, dims []cwtypes.Dimension) string {
	var b strings.Builder
	b.WriteString(name)
	for _, d := range dims {
		b.WriteByte('|')
		b.WriteString(aws.ToString(d.Name))
		b.WriteByte('=')
		b.WriteString(aws.ToString(d.Value))
	}
	return b.String()
}

func metricUnit(fields logger.Fields) cwtypes.StandardUnit {
	unit, _ := fields["unit"].(string)
	switch strings.ToLower(unit) {
	case "percent":
		return cwtypes.StandardUnitPercent
	case "seconds":
		return cwtypes.StandardUnitSeconds
	case "milliseconds":
		return cwtypes.StandardUnitMilliseconds
	default:
		return cwtypes.StandardUnitCount
	}
}
