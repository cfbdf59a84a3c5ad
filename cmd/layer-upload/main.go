// layer-upload：把本地图层文件（缺失时为内置默认数据）上传到对象存储，供远端模式读取
// 用法：layer-upload [boundary|buildings|countries ...]，不带参数时上传全部图层
package main

import (
	"context"
	"os"
	"path/filepath"

	"geo-api/internal/logger"
	"geo-api/internal/objstore"
	"geo-api/internal/store"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const geoJSONContentType = "application/geo+json"

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		l.Error("missing_bucket", "env", "GCS_BUCKET_NAME")
		os.Exit(2)
	}
	root := os.Getenv("DATA_ROOT")
	if root == "" {
		root = "."
	}
	layers, err := parseLayers(os.Args[1:])
	if err != nil {
		l.Error("bad_args", "err", err)
		os.Exit(2)
	}

	ctx := context.Background()
	gcs, err := objstore.NewGCS(ctx)
	if err != nil {
		l.Error("gcs_client_error", "err", err)
		os.Exit(1)
	}
	defer gcs.Close()

	if err := upload(ctx, gcs, bucket, root, layers); err != nil {
		l.Error("upload_failed", "err", err)
		os.Exit(1)
	}
	l.Info("upload_done", "bucket", bucket, "layers", len(layers))
}

func parseLayers(args []string) ([]store.Layer, error) {
	if len(args) == 0 {
		return store.Layers, nil
	}
	out := make([]store.Layer, 0, len(args))
	for _, a := range args {
		ly, err := store.ParseLayer(a)
		if err != nil {
			return nil, err
		}
		out = append(out, ly)
	}
	return out, nil
}

// upload：逐个图层读取并写入 bucket，遇错即停
func upload(ctx context.Context, w objstore.BlobWriter, bucket, root string, layers []store.Layer) error {
	for _, ly := range layers {
		fc, fromFile, err := store.ReadLayer(root, ly)
		if err != nil {
			return errors.Wrapf(err, "read %s", ly)
		}
		data, err := store.EncodeCollection(fc)
		if err != nil {
			return errors.Wrapf(err, "encode %s", ly)
		}
		if err := w.WriteBlob(ctx, bucket, ly.FileName(), data, geoJSONContentType); err != nil {
			return errors.Wrapf(err, "write %s", ly.FileName())
		}
		logger.L().Info("layer_uploaded", "layer", string(ly), "from_file", fromFile, "bytes", len(data))
	}
	return nil
}
