package actors

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"keyholder/engine/library"
	"keyholder/state/identity"
	"keyholder/state/keys"
)

func TestBuildNotification(t *testing.T) {
	address := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	tests := []struct {
		name string
		n    identity.Notification
		want map[string]interface{}
		tags int
	}{
		{
			name: "execution requested",
			n:    identity.Notification{Event: identity.ExecutionRequested, Identity: address, ExecutionID: 3, Target: common.HexToAddress("0x07"), Value: big.NewInt(5)},
			want: map[string]interface{}{"event": "ExecutionRequested", "executionId": float64(3), "value": "5"},
			tags: 4,
		},
		{
			name: "rejection keeps the false decision",
			n:    identity.Notification{Event: identity.Approved, Identity: address, ExecutionID: 3, Decision: false},
			want: map[string]interface{}{"decision": false},
			tags: 4,
		},
		{
			name: "key added",
			n:    identity.Notification{Event: identity.KeyAdded, Identity: address, Key: library.KeyIDFromAddress(common.HexToAddress("0x09")), Purpose: keys.Payment, KeyType: keys.ECDSA},
			want: map[string]interface{}{"purpose": "PAYMENT", "keyType": "ECDSA"},
			tags: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := BuildNotification(tt.n, 7251)
			if e.Kind != 7251 {
				t.Fatalf("kind = %d", e.Kind)
			}
			if len(e.Tags) != tt.tags {
				t.Fatalf("tags = %v", e.Tags)
			}
			if v, ok := library.GetFirstTag(e, "identity"); !ok || v != address.Hex() {
				t.Fatalf("identity tag = %q", v)
			}
			var content map[string]interface{}
			if err := json.Unmarshal([]byte(e.Content), &content); err != nil {
				t.Fatalf("content is not JSON: %v", err)
			}
			for k, v := range tt.want {
				if content[k] != v {
					t.Errorf("content[%s] = %v, want %v", k, content[k], v)
				}
			}
		})
	}
}
