// internal/workers/pdf_processor_test.go
package workers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/posflow/pos-be/internal/workers"
	"github.com/posflow/pos-be/test/helpers"
	"github.com/posflow/pos-be/test/mocks"
)

// emptyPDF is a one-page PDF with an empty content stream; the parser
// reads it without error and finds no delivery lines.
var emptyPDF = minimalPDF()

// minimalPDF assembles the document and its cross-reference table with
// offsets computed while writing, so the reader accepts it.
func minimalPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n",
		"2 0 obj\n<</Type/Pages/Count 1/Kids[3 0 R]>>\nendobj\n",
		"3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Resources<<>>/Contents 4 0 R>>\nendobj\n",
		"4 0 obj\n<</Length 0>>\nstream\n\nendstream\nendobj\n",
	}

	offsets := make([]int, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestDeliveryNoteProcessor_ProcessDeliveryNote(t *testing.T) {
	tests := []struct {
		name          string
		payload       workers.DeliveryNotePayload
		setupMocks    func(*mocks.MockProductCatalog, *mocks.MockStorageClient)
		expectedError bool
		errorContains string
	}{
		{
			name: "empty_pdf_creates_no_batches",
			payload: workers.DeliveryNotePayload{
				JobID:      uuid.New(),
				StorageKey: "delivery-notes/test.pdf",
				Supplier:   "Acme Wholesale",
			},
			setupMocks: func(catalog *mocks.MockProductCatalog, storage *mocks.MockStorageClient) {
				storage.EXPECT().
					Download(gomock.Any(), "delivery-notes/test.pdf").
					Return(emptyPDF, nil)
			},
			expectedError: false,
		},
		{
			name: "download_failure_returns_error",
			payload: workers.DeliveryNotePayload{
				JobID:      uuid.New(),
				StorageKey: "delivery-notes/missing.pdf",
				Supplier:   "Acme Wholesale",
			},
			setupMocks: func(catalog *mocks.MockProductCatalog, storage *mocks.MockStorageClient) {
				storage.EXPECT().
					Download(gomock.Any(), "delivery-notes/missing.pdf").
					Return(nil, assert.AnError)
			},
			expectedError: true,
			errorContains: "failed to download",
		},
		{
			name: "unreadable_pdf_returns_error",
			payload: workers.DeliveryNotePayload{
				JobID:      uuid.New(),
				StorageKey: "delivery-notes/garbage.pdf",
				Supplier:   "Acme Wholesale",
			},
			setupMocks: func(catalog *mocks.MockProductCatalog, storage *mocks.MockStorageClient) {
				storage.EXPECT().
					Download(gomock.Any(), "delivery-notes/garbage.pdf").
					Return([]byte("not a pdf"), nil)
			},
			expectedError: true,
			errorContains: "failed to extract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockCatalog := mocks.NewMockProductCatalog(ctrl)
			mockStorage := mocks.NewMockStorageClient(ctrl)

			processor := workers.NewDeliveryNoteProcessor(mockCatalog, mockStorage, helpers.TestLogger())

			tt.setupMocks(mockCatalog, mockStorage)

			payloadBytes, err := json.Marshal(tt.payload)
			require.NoError(t, err)

			task := asynq.NewTask(workers.TypeDeliveryNoteProcess, payloadBytes)

			err = processor.ProcessDeliveryNote(context.Background(), task)

			if tt.expectedError {
				require.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDeliveryNoteProcessor_InvalidPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	processor := workers.NewDeliveryNoteProcessor(
		mocks.NewMockProductCatalog(ctrl),
		mocks.NewMockStorageClient(ctrl),
		helpers.TestLogger())

	task := asynq.NewTask(workers.TypeDeliveryNoteProcess, []byte("{not json"))

	err := processor.ProcessDeliveryNote(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
