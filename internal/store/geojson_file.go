package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// readCollection：读取并解析 FeatureCollection 文件
// 返回：found=false 表示文件不存在（由调用方决定回退）；空文件视为空集合；解析失败返回错误。
func readCollection(path string) (*geojson.FeatureCollection, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read %s", path)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return geojson.NewFeatureCollection(), true, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, true, errors.Wrapf(err, "parse %s", path)
	}
	return fc, true, nil
}

// ReadLayer：从 root 目录读取图层文件，缺失时返回内置默认集合
// 返回的 fromFile 标记数据来源，供日志与上传工具使用。
func ReadLayer(root string, l Layer) (fc *geojson.FeatureCollection, fromFile bool, err error) {
	fc, found, err := readCollection(filepath.Join(root, l.FileName()))
	if err != nil {
		return nil, found, err
	}
	if !found {
		return defaultLayer(l), false, nil
	}
	return fc, true, nil
}

// EncodeCollection：以 UTF-8、两空格缩进编码集合，非 ASCII 字符原样输出
func EncodeCollection(fc *geojson.FeatureCollection) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return nil, errors.Wrap(err, "encode feature collection")
	}
	return buf.Bytes(), nil
}

// writeCollection：整文件重写
// 约束：先写同目录临时文件并 fsync，再 rename 覆盖，避免中途崩溃留下截断文件。
func writeCollection(path string, fc *geojson.FeatureCollection) error {
	b, err := EncodeCollection(fc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrapf(err, "chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}
