package collect

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

var (
	ErrInvalidRow = fmt.Errorf("invalid row")
)

// ReferenceDataProvider returns the static data of a bond given its code.
type ReferenceDataProvider interface {
	Descriptor(ctx context.Context, code string) (*bond.Descriptor, error)
}

// QuoteProvider returns the clean prices of a bond across venues for a date.
type QuoteProvider interface {
	Quotes(ctx context.Context, desc bond.Descriptor, date time.Time) ([]types.Quote, error)
}

// Collector scrapes a source for one date.
type Collector interface {
	Collect(ctx context.Context, date time.Time) (*Snapshot, error)
	Source() string
}

// Failure records a row or bond that could not be collected or valued.
type Failure struct {
	Code string
	Err  error
}

// Snapshot is what a collector gathered for one date. It serves as both
// reference data and quote provider for the bonds it contains.
type Snapshot struct {
	Source      string
	Date        time.Time
	Descriptors map[string]bond.Descriptor
	Prices      map[string][]types.Quote
	Failures    []*Failure
}

func NewSnapshot(source string, date time.Time) *Snapshot {
	return &Snapshot{
		Source:      source,
		Date:        calendar.Normalize(date),
		Descriptors: map[string]bond.Descriptor{},
		Prices:      map[string][]types.Quote{},
		Failures:    []*Failure{},
	}
}

func (s *Snapshot) AddDescriptor(desc bond.Descriptor) {
	s.Descriptors[desc.Code] = desc
}

func (s *Snapshot) AddQuote(q types.Quote) {
	s.Prices[q.Code] = append(s.Prices[q.Code], q)
}

func (s *Snapshot) AddFailure(code string, err error) {
	s.Failures = append(s.Failures, &Failure{Code: code, Err: err})
}

// Codes returns the codes with a descriptor, sorted.
func (s *Snapshot) Codes() []string {
	codes := make([]string, 0, len(s.Descriptors))
	for code := range s.Descriptors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (s *Snapshot) Descriptor(ctx context.Context, code string) (*bond.Descriptor, error) {
	desc, ok := s.Descriptors[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in %s snapshot", types.ErrUnknownBond, code, s.Source)
	}
	return &desc, nil
}

func (s *Snapshot) Quotes(ctx context.Context, desc bond.Descriptor, date time.Time) ([]types.Quote, error) {
	if !calendar.Normalize(date).Equal(s.Date) {
		return nil, fmt.Errorf("%w: %s snapshot is for %s", types.ErrDataUnavailable, s.Source, calendar.FormatDate(s.Date))
	}
	quotes, ok := s.Prices[desc.Code]
	if !ok {
		return nil, fmt.Errorf("%w: no %s quote for %s", types.ErrDataUnavailable, s.Source, desc.Code)
	}
	return quotes, nil
}

// StaticReferenceData serves descriptors from configuration.
type StaticReferenceData map[string]bond.Descriptor

func (s StaticReferenceData) Descriptor(ctx context.Context, code string) (*bond.Descriptor, error) {
	desc, ok := s[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownBond, code)
	}
	return &desc, nil
}

// Collected holds the valuations produced for one source and date.
type Collected struct {
	mu         sync.Mutex
	Valuations []*types.Valuation
	Failures   []*Failure
	Source     string
	Date       time.Time
}

func NewCollected(source string, date time.Time) *Collected {
	return &Collected{
		Source:     source,
		Date:       calendar.Normalize(date),
		Valuations: []*types.Valuation{},
		Failures:   []*Failure{},
	}
}

// AddValuation and AddFailure are safe for concurrent use.
func (c *Collected) AddValuation(v *types.Valuation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Valuations = append(c.Valuations, v)
}

func (c *Collected) AddFailure(code string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Failures = append(c.Failures, &Failure{Code: code, Err: err})
}

// Sort orders valuations by code then venue so output files are stable.
func (c *Collected) Sort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.Slice(c.Valuations, func(i, j int) bool {
		a, b := c.Valuations[i], c.Valuations[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Venue < b.Venue
	})
}

func WriteValuations(valuations []*types.Valuation, output io.Writer) error {
	writer := parquet.NewGenericWriter[*types.Valuation](output)

	if _, err := writer.Write(valuations); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return nil
}

func StoreToPath(ctx context.Context, collected *Collected, basepath string) (string, error) {
	date := collected.Date

	path := fmt.Sprintf(
		"%s%c%04d%c%02d%c%02d",
		basepath,
		filepath.Separator,
		date.UTC().Year(),
		filepath.Separator,
		date.UTC().Month(),
		filepath.Separator,
		date.UTC().Day(),
	)

	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return "", err
	}

	outPath := fmt.Sprintf("%s%c%s.parquet", path, filepath.Separator, collected.Source)

	file, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := WriteValuations(collected.Valuations, file); err != nil {
		return "", err
	}

	return outPath, nil
}

type S3Path struct {
	Bucket string
	Prefix string
}

func ParseS3(path string) (*S3Path, error) {
	if !strings.HasPrefix(path, "s3://") {
		return nil, fmt.Errorf("path must start with s3://")
	}

	path = strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(path, "/", 2)

	bucket := parts[0]
	if bucket == "" {
		return nil, fmt.Errorf("missing bucket in s3 path")
	}

	var prefix string

	if len(parts) > 1 {
		prefix = strings.TrimSuffix(parts[1], "/")
	}

	return &S3Path{
		Bucket: bucket,
		Prefix: prefix,
	}, nil
}

// S3PutObjectAPI is the part of *s3.Client used for uploads.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func StoreToS3(ctx context.Context, collected *Collected, s3Client S3PutObjectAPI, dst *S3Path) (string, error) {
	tmp, err := os.CreateTemp("", "bondcalc-*.parquet")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer tmp.Close()
	defer os.Remove(tmp.Name())

	if err := WriteValuations(collected.Valuations, tmp); err != nil {
		return "", err
	}

	if _, err := tmp.Seek(0, 0); err != nil {
		return "", fmt.Errorf("failed to seek to start of file: %w", err)
	}

	date := collected.Date

	key := fmt.Sprintf(
		"%04d/%02d/%02d/%s.parquet",
		date.UTC().Year(),
		date.UTC().Month(),
		date.UTC().Day(),
		collected.Source,
	)

	if dst.Prefix != "" {
		key = fmt.Sprintf("%s/%s", dst.Prefix, key)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(dst.Bucket),
		Key:    aws.String(key),
		Body:   tmp,
	}

	if _, err := s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload file to s3://%s/%s: %w", dst.Bucket, key, err)
	}

	outPath := fmt.Sprintf("s3://%s/%s", dst.Bucket, key)

	return outPath, nil
}
