package cmd

import (
	"context"
	"fmt"

	"github.com/bensku/zoneport/zone"
	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type storageOpts struct {
	etcdEndpoints []string
	etcdPrefix    string
	dataDir       string
}

func (o *storageOpts) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.etcdEndpoints, "etcd-endpoints", nil, "Comma-separated list of etcd endpoints")
	cmd.Flags().StringVar(&o.etcdPrefix, "etcd-prefix", "/zoneport/zones/", "Etcd prefix for zone data")
	cmd.Flags().StringVar(&o.dataDir, "data-dir", "/var/lib/zoneport/zones", "Directory for zone files")
}

// primary opens etcd storage when endpoints are configured, file storage
// otherwise. The returned function releases the etcd client.
func (o *storageOpts) primary(ctx context.Context) (zone.ZoneStorage, func(), error) {
	if len(o.etcdEndpoints) == 0 {
		storage, err := zone.NewFileStorage(o.dataDir)
		return storage, func() {}, err
	}
	client, err := clientv3.New(clientv3.Config{
		Context:   ctx,
		Endpoints: o.etcdEndpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return zone.NewEtcdStorage(client, o.etcdPrefix), func() { client.Close() }, nil
}
