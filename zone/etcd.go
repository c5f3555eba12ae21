package zone

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bensku/zoneport/zonefile"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Keys under a zone prefix that are not records. Record ids may not start
// with "__".
const (
	zoneMarkerKey  = "__zone"
	lastUpdatedKey = "__lastUpdated"
)

type EtcdStorage struct {
	client *clientv3.Client
	prefix string
}

func NewEtcdStorage(client *clientv3.Client, prefix string) *EtcdStorage {
	return &EtcdStorage{
		client: client,
		prefix: prefix,
	}
}

func (storage *EtcdStorage) etcdPrefix(zoneId string) string {
	return storage.prefix + zoneId + "/"
}

func encodeTime(t time.Time) string {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(t.UnixNano()))
	return string(data)
}

func decodeTime(data []byte) time.Time {
	if len(data) != 8 {
		return time.Unix(0, 0)
	}
	return time.Unix(0, int64(binary.LittleEndian.Uint64(data)))
}

func (storage *EtcdStorage) zoneExists(zoneId string) clientv3.Cmp {
	return clientv3.Compare(clientv3.CreateRevision(storage.etcdPrefix(zoneId)+zoneMarkerKey), ">", 0)
}

func (storage *EtcdStorage) touch(zoneId string) clientv3.Op {
	return clientv3.OpPut(storage.etcdPrefix(zoneId)+lastUpdatedKey, encodeTime(time.Now()))
}

// commit runs ops if the zone exists.
func (storage *EtcdStorage) commit(ctx context.Context, zoneId string, ops ...clientv3.Op) error {
	resp, err := storage.client.KV.Txn(ctx).If(storage.zoneExists(zoneId)).Then(ops...).Commit()
	if err != nil {
		return err
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
	}
	return nil
}

func (storage *EtcdStorage) ListZones(ctx context.Context) ([]string, error) {
	resp, err := storage.client.KV.Get(ctx, storage.prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	zones := make([]string, 0)
	suffix := "/" + zoneMarkerKey
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		id := strings.TrimSuffix(key[len(storage.prefix):], suffix)
		if !strings.Contains(id, "/") {
			zones = append(zones, id)
		}
	}
	sort.Strings(zones)
	return zones, nil
}

func (storage *EtcdStorage) AddZone(ctx context.Context, zoneId string) error {
	if err := checkZoneId(zoneId); err != nil {
		return err
	}
	marker := storage.etcdPrefix(zoneId) + zoneMarkerKey
	resp, err := storage.client.KV.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(marker), "=", 0)).
		Then(clientv3.OpPut(marker, zoneId), storage.touch(zoneId)).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to add zone: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: %s", ErrZoneExists, zoneId)
	}
	return nil
}

func (storage *EtcdStorage) DeleteZone(ctx context.Context, zoneId string) error {
	err := storage.commit(ctx, zoneId, clientv3.OpDelete(storage.etcdPrefix(zoneId), clientv3.WithPrefix()))
	if err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
	}
	return nil
}

func (storage *EtcdStorage) Load(ctx context.Context, zoneId string) (Zone, error) {
	prefix := storage.etcdPrefix(zoneId)
	resp, err := storage.client.KV.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return Zone{}, fmt.Errorf("failed to lookup zone: %w", err)
	}

	// Load entire zone from etcd as JSON rows
	records := make([]DnsRecord, 0)
	lastUpdated := time.Unix(0, 0)
	found := false
	for _, kv := range resp.Kvs {
		id := string(kv.Key[len(prefix):])
		switch id {
		case zoneMarkerKey:
			found = true
			continue
		case lastUpdatedKey:
			lastUpdated = decodeTime(kv.Value)
			continue
		}

		var row zonefile.Record
		if err := json.Unmarshal(kv.Value, &row); err != nil {
			return Zone{}, fmt.Errorf("failed to decode record %s: %w", id, err)
		}
		records = append(records, DnsRecord{Id: id, Record: row})
	}
	if !found {
		return Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
	}

	return Zone{
		Id:          zoneId,
		Records:     records,
		LastUpdated: lastUpdated,
	}, nil
}

func (storage *EtcdStorage) LastUpdated(ctx context.Context, zoneId string) (time.Time, error) {
	resp, err := storage.client.KV.Get(ctx, storage.etcdPrefix(zoneId)+lastUpdatedKey)
	if err != nil {
		return time.Unix(0, 0), fmt.Errorf("failed to lookup lastUpdated: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return time.Unix(0, 0), nil
	}
	return decodeTime(resp.Kvs[0].Value), nil
}

func (storage *EtcdStorage) Patch(ctx context.Context, zoneId string, record DnsRecord) error {
	record, err := checkRecord(record)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	err = storage.commit(ctx, zoneId,
		clientv3.OpPut(storage.etcdPrefix(zoneId)+record.Id, string(data)),
		storage.touch(zoneId),
	)
	if err != nil {
		return fmt.Errorf("failed to patch record: %w", err)
	}
	return nil
}

func (storage *EtcdStorage) Delete(ctx context.Context, zoneId string, id string) error {
	if err := checkId(id); err != nil {
		return err
	}
	err := storage.commit(ctx, zoneId,
		clientv3.OpDelete(storage.etcdPrefix(zoneId)+id),
		storage.touch(zoneId),
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes every record but keeps the zone. Records are all keys
// outside the reserved "__" range, deleted as the two ranges around it.
func (storage *EtcdStorage) Clear(ctx context.Context, zoneId string) error {
	prefix := storage.etcdPrefix(zoneId)
	err := storage.commit(ctx, zoneId,
		clientv3.OpDelete(prefix, clientv3.WithRange(prefix+"__")),
		clientv3.OpDelete(prefix+"_`", clientv3.WithRange(clientv3.GetPrefixRangeEnd(prefix))),
		storage.touch(zoneId),
	)
	if err != nil {
		return fmt.Errorf("etcd delete failed: %w", err)
	}
	return nil
}

var _ ZoneStorage = (*EtcdStorage)(nil)
