package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceStopper_Stop(t *testing.T) {
	var stopped *ec2.StopInstancesInput
	mock := &mockEC2Client{
		stopInstancesFunc: func(_ context.Context, params *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
			stopped = params
			return &ec2.StopInstancesOutput{}, nil
		},
	}

	stopper := NewInstanceStopper(mock)
	err := stopper.Stop(context.Background(), "i-0abc123")

	require.NoError(t, err)
	require.NotNil(t, stopped)
	assert.Equal(t, []string{"i-0abc123"}, stopped.InstanceIds)
}

func TestInstanceStopper_Stop_Error(t *testing.T) {
	mock := &mockEC2Client{
		stopInstancesFunc: func(_ context.Context, _ *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
			return nil, assert.AnError
		},
	}

	stopper := NewInstanceStopper(mock)
	err := stopper.Stop(context.Background(), "i-0abc123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop instance i-0abc123")
}
