// Package aws implements the AWS-facing side of the reaper: instance
// discovery, tag bookkeeping, metric queries, and the stop action.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Clients bundles the AWS service clients the reaper talks to
type Clients struct {
	Region     string
	EC2        *ec2.Client
	CloudWatch *cloudwatch.Client
	SNS        *sns.Client
	SQS        *sqs.Client
	ECR        *ecr.Client
	CloudTrail *cloudtrail.Client
	DynamoDB   *dynamodb.Client
}

// NewClients loads the default AWS config and builds all service clients
func NewClients(ctx context.Context, region string) (*Clients, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewClientsFromConfig(awsCfg), nil
}

// NewClientsFromConfig builds service clients from an existing AWS config
func NewClientsFromConfig(awsCfg awssdk.Config) *Clients {
	return &Clients{
		Region:     awsCfg.Region,
		EC2:        ec2.NewFromConfig(awsCfg),
		CloudWatch: cloudwatch.NewFromConfig(awsCfg),
		SNS:        sns.NewFromConfig(awsCfg),
		SQS:        sqs.NewFromConfig(awsCfg),
		ECR:        ecr.NewFromConfig(awsCfg),
		CloudTrail: cloudtrail.NewFromConfig(awsCfg),
		DynamoDB:   dynamodb.NewFromConfig(awsCfg),
	}
}
