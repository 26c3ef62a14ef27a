package dispatcher

import "time"

type Config struct {
	// Timer for performing record retention in the DB
	RebuildDBTime time.Duration `envconfig:"PIPECAST_REBUILD_DB_TIME" default:"15s"`
	// maximum number of records kept per pipeline, 0 keeps everything
	MaxItemsStored int `envconfig:"PIPECAST_MAX_ITEMS_STORED" default:"100000"`
	// maximum retention period of records, 0 keeps everything
	MaxStorageTime time.Duration `envconfig:"PIPECAST_MAX_STORAGE_TIME" default:"0s"`
	// Buffer size in dbTxExecutor at which records are flushed to disk
	DBFlushSize int `envconfig:"PIPECAST_DB_FLUSH_SIZE" default:"10"`
	// Maximum time a record waits in the dbTxExecutor buffer
	DBFlushTime time.Duration `envconfig:"PIPECAST_DB_FLUSH_TIME" default:"5s"`
	RetrainInterval time.Duration `envconfig:"PIPECAST_RETRAIN_INTERVAL" default:"10m"`
	// Training is skipped while fewer records are stored
	MinTrainingRecords int `envconfig:"PIPECAST_MIN_TRAINING_RECORDS" default:"10"`
}
