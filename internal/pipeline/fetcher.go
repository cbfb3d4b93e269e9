package pipeline

import (
	"context"
	"os"

	"askdocs-go/pkg/log"
	"askdocs-go/pkg/storage"
)

// minioFetcher 从对象存储下载文件到本地临时目录。
type minioFetcher struct {
	bucket string
}

// NewMinioFetcher 创建基于 MinIO 的文件获取器。
func NewMinioFetcher(bucket string) FileFetcher {
	return &minioFetcher{bucket: bucket}
}

func (f *minioFetcher) Fetch(ctx context.Context, objectName string) (string, func(), error) {
	path, err := storage.DownloadToTemp(ctx, f.bucket, objectName)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil {
			log.Warnf("清理临时文件失败: %s, err: %v", path, err)
		}
	}
	return path, cleanup, nil
}
