package config

const (
	folderEnvVar   = "FOLDER"
	storeDriverVar = "STORE_DRIVER"
	storeRetryVar  = "STORE_RETRIES"
)

// Store drivers understood by GetStoreDriver.
const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (Storage) GetStoreDriver() string {
	return GetEnv(storeDriverVar, StoreDriverFile)
}

// GetStorageRetries is the number of retries for a single credential write.
func (Storage) GetStorageRetries() uint64 {
	return GetUint(storeRetryVar, 3)
}
