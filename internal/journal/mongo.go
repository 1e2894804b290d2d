package journal

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
)

const (
	DatabaseName          = "mqtt_debug"
	PacketCollectionName  = "packets"
	defaultConnectTimeout = 15 * time.Second
	operationTimeout      = 3 * time.Second
)

// MongoJournal 将报文记录写入 MongoDB，便于跨进程检查历史流量
type MongoJournal struct {
	client  *mongo.Client
	packets *mongo.Collection
}

func NewMongoJournal(ctx context.Context, uri string, appName string) (*MongoJournal, error) {
	logger.DebugF("Connecting to journal database...")

	clientOptions := options.Client().ApplyURI(uri).SetAppName(appName)
	clientOptions.SetConnectTimeout(defaultConnectTimeout)
	clientOptions.SetSocketTimeout(operationTimeout)

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to journal database: %v", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while pinging journal database: %v", err)
	}

	packets := client.Database(DatabaseName).Collection(PacketCollectionName)

	_, err = packets.Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "time", Value: 1}},
			Options: options.Index().SetName("packets_client_id_time"),
		},
	)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while creating journal indexes: %v", err)
	}

	return &MongoJournal{client: client, packets: packets}, nil
}

// Record 写入失败只记日志，不影响代理工作
func (j *MongoJournal) Record(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if _, err := j.packets.InsertOne(ctx, entry); err != nil {
		logger.WarnF("Fail to record journal entry, details: %v", err)
	}
}

func (j *MongoJournal) Close(ctx context.Context) error {
	logger.InfoF("Closing journal database connection")
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	return j.client.Disconnect(ctx)
}
