package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	commandSchema := compile("command.schema.json")
	resultSchema := compile("result.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "trader_name":"hauler-7",
	  "max_queue":8
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"b8f6f3f0-3c1e-4a43-91a5-2f86f7f6f001",
	  "trader_id":"TR000001",
	  "economy_params":{
	    "update_interval_ms":5000,
	    "time_scale":60,
	    "markets":4,
	    "seed":1337
	  },
	  "catalogs":{
	    "items_digest":"deadbeef",
	    "markets_digest":"deadbeef",
	    "events_digest":"deadbeef",
	    "item_count":12,
	    "market_count":4
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var command any
	_ = json.Unmarshal([]byte(`{
	  "type":"COMMAND",
	  "protocol_version":"1.0",
	  "id":"C1",
	  "op":"BUY",
	  "market_id":"MKT_NOVA_PRIME",
	  "item_id":"HYDROGEN_FUEL",
	  "quantity":10
	}`), &command)
	validate(commandSchema, command)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "ref":"C1",
	  "ok":false,
	  "code":"E_INSUFFICIENT_FUNDS",
	  "message":"need 126 credits, have 100",
	  "game_hours":12.5
	}`), &result)
	validate(resultSchema, result)
}
