package storage

import (
	"encoding/json"
	"errors"

	"strategos/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRunRecord(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRunRecord(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeProgressPoint(p model.ProgressPoint) ([]byte, error) {
	return json.Marshal(p)
}

func DecodeProgressPoint(data []byte) (model.ProgressPoint, error) {
	var point model.ProgressPoint
	if err := json.Unmarshal(data, &point); err != nil {
		return model.ProgressPoint{}, err
	}
	return point, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
