package rpc_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/tolelom/monchain/config"
	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/indexer"
	"github.com/tolelom/monchain/internal/testutil"
	"github.com/tolelom/monchain/rpc"
	"github.com/tolelom/monchain/storage"
)

type RPCTestSuite struct {
	suite.Suite
	chain   *testutil.Chain
	bc      *core.Blockchain
	mempool *core.Mempool
	stream  *rpc.Stream
	ts      *httptest.Server
	client  *rpc.Client
	ctx     context.Context
}

func TestRPCSuite(t *testing.T) {
	suite.Run(t, new(RPCTestSuite))
}

func (s *RPCTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.chain = testutil.NewChain(s.T())

	s.bc = core.NewBlockchain(storage.NewBlockStore(s.chain.DB))
	s.Require().NoError(s.bc.Init())
	cfg := config.DefaultConfig()
	cfg.Genesis.ChainID = testutil.ChainID
	genesis, err := config.CreateGenesisBlock(cfg, s.chain.State, s.chain.Arbiter.Priv)
	s.Require().NoError(err)
	s.Require().NoError(s.bc.AddBlock(genesis))

	s.mempool = core.NewMempool(testutil.ChainID)
	idx := indexer.New(s.chain.DB, s.chain.Emitter)
	s.stream = rpc.NewStream(s.chain.Emitter)
	h := rpc.NewHandler(s.bc, s.mempool, s.chain.State, idx, testutil.ChainID)
	srv := rpc.NewServer("127.0.0.1:0", h, s.stream, "")

	s.ts = httptest.NewServer(srv.Routes())
	s.client = rpc.NewClient(s.ts.URL, "")
}

func (s *RPCTestSuite) TearDownTest() {
	s.stream.Close()
	s.ts.Close()
}

func (s *RPCTestSuite) requireGameError(err error, code string) {
	s.Require().Error(err)
	rpcErr, ok := err.(*rpc.Error)
	s.Require().True(ok, "want *rpc.Error, got %T", err)
	s.Equal(rpc.CodeGameError, rpcErr.Code)
	s.Require().NotNil(rpcErr.Data)
	s.Equal(code, rpcErr.Data.Code)
}

func (s *RPCTestSuite) TestBlocks() {
	height, err := s.client.BlockHeight(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), height)

	var tip core.Block
	s.Require().NoError(s.client.Call(s.ctx, "getBlock", nil, &tip))
	s.Equal(s.bc.Tip().Hash, tip.Hash)

	var byHeight core.Block
	s.Require().NoError(s.client.Call(s.ctx, "getBlock", map[string]int64{"height": 0}, &byHeight))
	s.Equal(tip.Hash, byHeight.Hash)

	err = s.client.Call(s.ctx, "getBlock", map[string]string{"hash": "feed"}, nil)
	s.requireGameError(err, "NOT_FOUND")
}

func (s *RPCTestSuite) TestPlayersAndCreatures() {
	ash := s.chain.Register("ash")
	ids := s.chain.Grant(ash, 7, "pikachu", "bulbasaur")

	p, err := s.client.Player(s.ctx, ash.Pub)
	s.Require().NoError(err)
	s.Equal("ash", p.Name)
	s.True(p.Verified)

	var verified bool
	s.Require().NoError(s.client.Call(s.ctx, "isVerified", map[string]string{"address": ash.Pub}, &verified))
	s.True(verified)
	s.Require().NoError(s.client.Call(s.ctx, "isVerified", map[string]string{"address": "nobody"}, &verified))
	s.False(verified)

	var count uint64
	s.Require().NoError(s.client.Call(s.ctx, "getPlayerCount", nil, &count))
	s.Equal(uint64(1), count)
	var addr string
	s.Require().NoError(s.client.Call(s.ctx, "getPlayerAt", map[string]uint64{"index": 0}, &addr))
	s.Equal(ash.Pub, addr)

	view, err := s.client.Creature(s.ctx, ids[1])
	s.Require().NoError(err)
	s.Equal("bulbasaur", view.Name)
	s.Equal(ash.Pub, view.Owner)

	var owner string
	s.Require().NoError(s.client.Call(s.ctx, "ownerOf", map[string]uint64{"id": ids[0]}, &owner))
	s.Equal(ash.Pub, owner)

	var owned []uint64
	s.Require().NoError(s.client.Call(s.ctx, "getCreaturesByOwner", map[string]string{"owner": ash.Pub}, &owned))
	s.Equal(ids, owned)

	s.Require().NoError(s.client.Call(s.ctx, "getCreatureCount", nil, &count))
	s.Equal(uint64(2), count)
}

func (s *RPCTestSuite) TestGameErrorsCarryCode() {
	_, err := s.client.Player(s.ctx, "nobody")
	s.requireGameError(err, "NOT_REGISTERED")

	_, err = s.client.Creature(s.ctx, 42)
	s.requireGameError(err, "NOT_FOUND")

	err = s.client.Call(s.ctx, "getMonsInBattle", map[string]string{"a": "x", "b": "y"}, nil)
	s.requireGameError(err, "NO_CHALLENGE")
}

func (s *RPCTestSuite) TestInvalidRequests() {
	err := s.client.Call(s.ctx, "getCreature", map[string]string{}, nil)
	s.Require().Error(err)
	s.Equal(rpc.CodeInvalidParams, err.(*rpc.Error).Code)

	err = s.client.Call(s.ctx, "getBalance", nil, nil)
	s.Require().Error(err)
	s.Equal(rpc.CodeMethodNotFound, err.(*rpc.Error).Code)
}

func (s *RPCTestSuite) TestChallengeQueries() {
	ash := s.chain.Register("ash")
	misty := s.chain.Register("misty")
	ashMons := s.chain.Grant(ash, 5, "pikachu")
	s.chain.Grant(misty, 9, "staryu")
	s.chain.MustSend(ash, core.TxSetChallengeReady, core.SetChallengeReadyPayload{})
	s.chain.MustSend(misty, core.TxSetChallengeReady, core.SetChallengeReadyPayload{})

	var hash string
	s.Require().NoError(s.client.Call(s.ctx, "challengeHash", map[string]string{"a": misty.Pub, "b": ash.Pub}, &hash))
	s.Equal(core.ChallengeHash(ash.Pub, misty.Pub), hash)

	view, err := s.client.Challenge(s.ctx, ash.Pub, misty.Pub)
	s.Require().NoError(err)
	s.Equal("NONE", view.State)
	s.Nil(view.Mons)

	s.chain.MustSend(ash, core.TxChallenge, core.ChallengePayload{Opponent: misty.Pub, MonID: ashMons[0]})

	view, err = s.client.Challenge(s.ctx, misty.Pub, ash.Pub)
	s.Require().NoError(err)
	s.Equal("CHALLENGED", view.State)
	s.Require().NotNil(view.Mons)
	s.Equal(ash.Pub, view.Mons.Challenger)
	s.Equal(ashMons[0], view.Mons.ChallengerMon)

	var mib core.MonsInBattle
	s.Require().NoError(s.client.Call(s.ctx, "getMonsInBattle", map[string]string{"hash": hash}, &mib))
	s.Equal(misty.Pub, mib.Opponent)

	var hashes []string
	s.Require().NoError(s.client.Call(s.ctx, "getChallengesByPlayer", map[string]string{"player": misty.Pub}, &hashes))
	s.Equal([]string{hash}, hashes)
}

func (s *RPCTestSuite) TestSendTx() {
	ash := testutil.NewKey(s.T())
	tx, err := core.NewTransaction(testutil.ChainID, core.TxRegister, ash.Pub, 0, core.RegisterPayload{Name: "ash"})
	s.Require().NoError(err)
	tx.Sign(ash.Priv)

	id, err := s.client.SendTx(s.ctx, tx)
	s.Require().NoError(err)
	s.Equal(tx.Hash(), id)

	var size int
	s.Require().NoError(s.client.Call(s.ctx, "getMempoolSize", nil, &size))
	s.Equal(1, size)

	_, err = s.client.SendTx(s.ctx, tx)
	s.Require().Error(err)
	s.Equal(rpc.CodeTxRejected, err.(*rpc.Error).Code)

	other, err := core.NewTransaction("other-chain", core.TxRegister, ash.Pub, 0, core.RegisterPayload{Name: "ash"})
	s.Require().NoError(err)
	other.Sign(ash.Priv)
	_, err = s.client.SendTx(s.ctx, other)
	s.Require().Error(err)
	s.Equal(rpc.CodeInvalidParams, err.(*rpc.Error).Code)
}

func (s *RPCTestSuite) TestReceipts() {
	r := &core.Receipt{TxID: "abc", Type: core.TxRegister, Status: core.ReceiptFailed, Code: "NAME_TAKEN"}
	s.Require().NoError(s.chain.State.SetReceipt(r))

	got, err := s.client.Receipt(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(r, got)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()
	_, err = s.client.WaitReceipt(ctx, "missing", 10*time.Millisecond)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *RPCTestSuite) TestAuthToken() {
	h := rpc.NewHandler(s.bc, s.mempool, s.chain.State, nil, testutil.ChainID)
	srv := rpc.NewServer("127.0.0.1:0", h, nil, "s3cret")
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	_, err := rpc.NewClient(ts.URL, "").BlockHeight(s.ctx)
	s.Require().Error(err)
	s.Equal(rpc.CodeUnauthorized, err.(*rpc.Error).Code)

	for _, token := range []string{"s3creT", "s3cre", "s3cret2"} {
		_, err = rpc.NewClient(ts.URL, token).BlockHeight(s.ctx)
		s.Require().Error(err, token)
		s.Equal(rpc.CodeUnauthorized, err.(*rpc.Error).Code, token)
	}

	_, err = rpc.NewClient(ts.URL, "s3cret").BlockHeight(s.ctx)
	s.NoError(err)
}

func (s *RPCTestSuite) TestStreamDeliversEvents() {
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()
	s.Require().Eventually(func() bool { return s.stream.Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.chain.Register("brock")

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var got []events.EventType
	for len(got) < 2 {
		_, msg, err := conn.ReadMessage()
		s.Require().NoError(err)
		var ev events.Event
		s.Require().NoError(json.Unmarshal(msg, &ev))
		got = append(got, ev.Type)
	}
	s.Equal([]events.EventType{events.EventPlayerRegistered, events.EventTxExecuted}, got)
}
