// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// To regenerate mocks, run `make mocks` from the root directory.
package mocks

//go:generate mockgen -source=../../internal/adapters/storage/s3.go -destination=storage_client_mock.go -package=mocks StorageClient
//go:generate mockgen -source=../../internal/workers/pdf_processor.go -destination=product_catalog_mock.go -package=mocks ProductCatalog
