package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/finchinslc/openclaw-board/domain"
)

const archivePartition = "archive"

type tableEntityClient interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey string, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

// TableArchive keeps a snapshot of every archived task in an Azure table.
type TableArchive struct {
	table tableEntityClient
}

type archiveEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	TaskNumber   int    `json:"TaskNumber"`
	Title        string `json:"Title"`
	Status       string `json:"Status"`
	ArchivedAt   string `json:"ArchivedAt"`
	Snapshot     string `json:"Snapshot"`
}

// NewTableArchive creates an archive writing to the named table.
func NewTableArchive(connStr, table string) (*TableArchive, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableArchive{table: svc.NewClient(table)}, nil
}

// EnsureTable creates the archive table if it does not exist yet.
func (a *TableArchive) EnsureTable(ctx context.Context) error {
	_, err := a.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

// Archive stores the task snapshot, replacing an earlier one.
func (a *TableArchive) Archive(ctx context.Context, t domain.Task) error {
	snapshot, err := sonic.Marshal(t)
	if err != nil {
		return err
	}
	ent := archiveEntity{
		PartitionKey: archivePartition,
		RowKey:       t.ID,
		TaskNumber:   t.TaskNumber,
		Title:        t.Title,
		Status:       string(t.Status),
		Snapshot:     string(snapshot),
	}
	if t.ArchivedAt != nil {
		ent.ArchivedAt = t.ArchivedAt.UTC().Format(time.RFC3339)
	}
	data, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = a.table.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// Restore drops the snapshot of an unarchived task. A missing snapshot is not an error.
func (a *TableArchive) Restore(ctx context.Context, taskID string) error {
	_, err := a.table.DeleteEntity(ctx, archivePartition, taskID, nil)
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}
