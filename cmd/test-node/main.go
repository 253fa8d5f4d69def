package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/diogoX451/callrelay/internal/events"
	natsevents "github.com/diogoX451/callrelay/internal/events/nats"
	"github.com/diogoX451/callrelay/internal/logging"
	"github.com/diogoX451/callrelay/pkg/types"
)

// test-node faz o papel de um nó FreeSWITCH: responde no subject de API e
// publica eventos de canal sintéticos. Só para desenvolvimento local.
func main() {
	natsURL := flag.String("nats", types.Getenv("NATS_URL", "nats://localhost:5800"), "nats url")
	nodeID := flag.String("node", types.Getenv("NODE_ID", "agent_node_1"), "node id")
	interval := flag.Duration("interval", 5*time.Second, "interval between synthetic calls (0 disables)")
	malformed := flag.Bool("malformed", false, "publish one malformed payload per call cycle")
	flag.Parse()

	logging.Init(logging.Options{Level: types.Getenv("LOG_LEVEL", "info")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := natsevents.Dial(ctx, natsevents.Config{URL: *natsURL, Name: "callrelay-test-node"}, nil)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer conn.Close()

	subject := types.APISubject(types.DefaultAPIPrefix, *nodeID)
	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	go serveCommands(ctx, conn, sub, *nodeID)
	if *interval > 0 {
		go emitCalls(ctx, conn, *nodeID, *interval, *malformed)
	}

	log.WithFields(log.Fields{"subject": subject, "nats": conn.ConnectedURL()}).Info("Test node started")
	<-ctx.Done()
}

func serveCommands(ctx context.Context, conn events.Conn, sub events.Subscription, nodeID string) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("command subscription ended")
			}
			return
		}
		if msg.Reply() == "" {
			continue
		}

		reply := handleCommand(msg.Data(), nodeID)
		if err := conn.Publish(msg.Reply(), reply); err != nil {
			log.WithError(err).Warn("reply failed")
		}
	}
}

func handleCommand(data []byte, nodeID string) []byte {
	var req types.CommandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustJSON(types.CommandReply{
			Success:   false,
			Message:   "Invalid JSON",
			NodeID:    nodeID,
			Timestamp: time.Now().UnixMicro(),
		})
	}

	log.WithFields(log.Fields{"command": req.Command, "args": req.Args}).Info("command received")

	// show calls devolve a lista (vazia) no campo calls, como o nó real
	if req.Command == "show" && strings.TrimSpace(req.Args) == "calls" {
		return mustJSON(map[string]interface{}{
			"success":   true,
			"message":   "Command executed successfully",
			"calls":     []interface{}{},
			"node_id":   nodeID,
			"timestamp": time.Now().UnixMicro(),
		})
	}

	return mustJSON(types.CommandReply{
		Success:   true,
		Message:   "Command executed successfully",
		Data:      "+OK " + req.Command,
		NodeID:    nodeID,
		Timestamp: time.Now().UnixMicro(),
	})
}

// emitCalls publica park → answer → hangup para uma chamada fake por ciclo
func emitCalls(ctx context.Context, conn events.Conn, nodeID string, interval time.Duration, malformed bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callID := uuid.NewString()
		steps := []struct {
			subject string
			event   types.ChannelEvent
		}{
			{types.SubjectChannelPark, types.ChannelEvent{EventName: "CHANNEL_PARK", ChannelState: "CS_EXECUTE"}},
			{types.SubjectChannelAnswer, types.ChannelEvent{EventName: "CHANNEL_ANSWER", ChannelState: "CS_EXCHANGE_MEDIA"}},
			{types.SubjectChannelHangup, types.ChannelEvent{EventName: "CHANNEL_HANGUP", ChannelState: "CS_HANGUP", HangupCause: "NORMAL_CLEARING"}},
		}
		for _, step := range steps {
			ev := step.event
			ev.UniqueID = callID
			ev.CallerIDName = "Test Caller"
			ev.CallerIDNum = "1000"
			ev.DestNumber = "1001"
			ev.NodeID = nodeID
			ev.Timestamp = time.Now()

			if err := conn.Publish(step.subject, mustJSON(ev)); err != nil {
				log.WithError(err).Warn("publish event failed")
			}
		}

		if malformed {
			_ = conn.Publish(types.SubjectChannelPark, []byte("{not json"))
		}
		log.WithField("uuid", callID).Debug("synthetic call published")
	}
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	return data
}
