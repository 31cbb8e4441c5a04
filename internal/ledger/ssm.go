package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/google/uuid"
	dserrors "github.com/systmms/keyrotator/internal/errors"
)

// SSMClientAPI defines the interface for SSM client operations
// This allows for mocking in tests
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameterHistory(ctx context.Context, params *ssm.GetParameterHistoryInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterHistoryOutput, error)
}

// SSMLedger keeps the last run in a single String parameter. Parameter Store
// versions double as the run history.
type SSMLedger struct {
	client    SSMClientAPI
	parameter string
}

// NewSSMLedger creates a ledger backed by the named parameter.
func NewSSMLedger(client SSMClientAPI, parameter string) *SSMLedger {
	return &SSMLedger{client: client, parameter: parameter}
}

// NewSSMLedgerFromConfig creates a ledger with a real SSM client.
func NewSSMLedgerFromConfig(cfg aws.Config, parameter string) *SSMLedger {
	return NewSSMLedger(ssm.NewFromConfig(cfg), parameter)
}

// LastRun reads the current parameter value
func (l *SSMLedger) LastRun(ctx context.Context) (*RunRecord, error) {
	out, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(l.parameter)})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, ErrNoRuns
		}
		return nil, dserrors.ProviderError("ssm", "GetParameter", err)
	}
	if out.Parameter == nil {
		return nil, ErrNoRuns
	}
	return decodeRun(aws.ToString(out.Parameter.Value))
}

// Record overwrites the parameter with the run
func (l *SSMLedger) Record(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	_, err = l.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(l.parameter),
		Value:     aws.String(string(data)),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return dserrors.ProviderError("ssm", "PutParameter", err)
	}
	return nil
}

// History walks the parameter's version history, newest first
func (l *SSMLedger) History(ctx context.Context, limit int) ([]RunRecord, error) {
	var versions []types.ParameterHistory

	paginator := ssm.NewGetParameterHistoryPaginator(l.client, &ssm.GetParameterHistoryInput{Name: aws.String(l.parameter)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var notFound *types.ParameterNotFound
			if errors.As(err, &notFound) {
				return []RunRecord{}, nil
			}
			return nil, dserrors.ProviderError("ssm", "GetParameterHistory", err)
		}
		versions = append(versions, page.Parameters...)
	}

	runs := []RunRecord{}
	for i := len(versions) - 1; i >= 0; i-- {
		run, err := decodeRun(aws.ToString(versions[i].Value))
		if err != nil {
			continue
		}
		runs = append(runs, *run)
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	return runs, nil
}

func decodeRun(value string) (*RunRecord, error) {
	var run RunRecord
	if err := json.Unmarshal([]byte(value), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return &run, nil
}
