package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
)

// Repository summarizes one ECR repository for the audit report
type Repository struct {
	Name        string
	URI         string
	CreatedAt   time.Time
	ScanOnPush  bool
	TagsMutable bool
}

// RepoAuditor lists ECR repositories and their scan configuration
type RepoAuditor struct {
	client ECRAPI
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewRepoAuditor creates an auditor over the given ECR client
func NewRepoAuditor(client ECRAPI) *RepoAuditor {
	return &RepoAuditor{
		client: client,
		logger: telemetry.NewLogger("repo-auditor"),
		tracer: otel.Tracer("repo-auditor"),
	}
}

// ListRepositories returns all repositories in the registry
func (a *RepoAuditor) ListRepositories(ctx context.Context) ([]Repository, error) {
	ctx, span := a.tracer.Start(ctx, "ListRepositories")
	defer span.End()

	var repositories []Repository
	paginator := ecr.NewDescribeRepositoriesPaginator(a.client, &ecr.DescribeRepositoriesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe repositories: %w", err)
		}

		for _, repo := range output.Repositories {
			repositories = append(repositories, convertRepository(repo))
		}
	}

	span.SetAttributes(attribute.Int("repositories.count", len(repositories)))

	return repositories, nil
}

// convertRepository converts an SDK repository to the report type
func convertRepository(repo ecrtypes.Repository) Repository {
	scanOnPush := false
	if repo.ImageScanningConfiguration != nil {
		scanOnPush = repo.ImageScanningConfiguration.ScanOnPush
	}

	return Repository{
		Name:        awssdk.ToString(repo.RepositoryName),
		URI:         awssdk.ToString(repo.RepositoryUri),
		CreatedAt:   awssdk.ToTime(repo.CreatedAt),
		ScanOnPush:  scanOnPush,
		TagsMutable: repo.ImageTagMutability == ecrtypes.ImageTagMutabilityMutable,
	}
}
