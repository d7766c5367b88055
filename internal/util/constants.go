package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	GatewayMemory = "memory"
	GatewayMongo  = "mongo"
)

// 提交图片相关常量
const (
	MimeImage = "image/"
)
