// Package downloader fetches per-node copies of the next stream file, decides
// which content is canonical by stake-weighted signature quorum, checks
// hash-chain continuity against the checkpoint, and hands the validated file
// to the commit callback.
package downloader

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	cm "github.com/mirrornet/mirror/src/common"
	"github.com/mirrornet/mirror/src/checkpoint"
	"github.com/mirrornet/mirror/src/nodebook"
	"github.com/mirrornet/mirror/src/storage"
	"github.com/mirrornet/mirror/src/stream"
	"github.com/sirupsen/logrus"
)

var errFetchTimeout = errors.New("fetch timed out")

// CommitFunc durably applies the effects of a validated file. The checkpoint
// only advances after CommitFunc returns nil.
type CommitFunc func(*stream.File) error

// Downloader runs verification rounds for one stream type. At most one round
// per Downloader runs at a time; the scheduler enforces that by calling
// DownloadNextBatch from a single goroutine.
type Downloader struct {
	streamType   stream.Type
	store        storage.ObjectStore
	checkpoints  checkpoint.Store
	books        *nodebook.Manager
	commit       CommitFunc
	fetchTimeout time.Duration
	logger       *logrus.Entry
}

// NewDownloader ...
func NewDownloader(
	streamType stream.Type,
	store storage.ObjectStore,
	checkpoints checkpoint.Store,
	books *nodebook.Manager,
	commit CommitFunc,
	fetchTimeout time.Duration,
	logger *logrus.Entry,
) *Downloader {
	return &Downloader{
		streamType:   streamType,
		store:        store,
		checkpoints:  checkpoints,
		books:        books,
		commit:       commit,
		fetchTimeout: fetchTimeout,
		logger:       logger.WithField("stream", streamType.String()),
	}
}

// RoundResult describes a successful round.
type RoundResult struct {
	FileName     string
	Timestamp    int64
	Hash         []byte
	Signers      []string          //accounts whose signatures matched the winning content
	Excluded     map[string]string //account => reason, for nodes left out of quorum
	Transactions int
	BypassUsed   bool
}

// candidate is one node's copy of the round's file. Ephemeral; it only lives
// for the duration of one round.
type candidate struct {
	node     *nodebook.Node
	content  []byte
	hash     []byte
	sig      string
	verified bool
	err      error
}

// hashGroup accumulates the candidates that returned identical content.
type hashGroup struct {
	hash    []byte
	stake   int64
	members []*candidate
}

// DownloadNextBatch runs one verification round: fetch the next expected file
// from every node, pick the canonical content by quorum, verify hash-chain
// continuity, commit, and advance the checkpoint. A failed round returns an
// error and leaves the system in its prior, consistent state.
func (d *Downloader) DownloadNextBatch() (*RoundResult, error) {
	cp, err := d.checkpoints.Get(d.streamType)
	if err != nil {
		if !cm.IsStore(err, cm.KeyNotFound) {
			return nil, err
		}
		cp = &checkpoint.Checkpoint{StreamType: d.streamType}
	}

	names, err := d.store.ListFiles(d.streamType, cp.LastFileName)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, NewRoundError(NoNextFile, d.streamType, "", "nothing published after %q", cp.LastFileName)
	}
	name := names[0]

	ts, err := d.streamType.TimestampFromName(name)
	if err != nil {
		return nil, stream.NewCorruptError("%v", err)
	}

	book := d.books.BookAt(ts)
	if book.TotalStake() == 0 {
		return nil, NewRoundError(QuorumNotReached, d.streamType, name, "node book has zero total stake")
	}

	d.logger.WithFields(logrus.Fields{
		"file":  name,
		"nodes": book.Len(),
	}).Debug("Starting round")

	excluded := map[string]string{}
	winner := d.selectWinner(book, name, excluded)
	if winner == nil {
		return nil, NewRoundError(QuorumNotReached, d.streamType, name,
			"no group exceeds 1/3 of total stake %d after signature checks", book.TotalStake())
	}

	content := winner.members[0].content

	prevHash, err := stream.ReadPrevHash(content)
	if err != nil {
		return nil, err
	}

	bypassUsed := false
	if len(cp.LastFileHash) > 0 && !bytes.Equal(prevHash, cp.LastFileHash) {
		if cp.BypassUntil == 0 || ts > cp.BypassUntil {
			return nil, NewRoundError(HashChainMismatch, d.streamType, name,
				"prev-hash %X does not match checkpoint %X", prevHash, cp.LastFileHash)
		}
		bypassUsed = true
		d.logger.WithFields(logrus.Fields{
			"file":         name,
			"bypass_until": cp.BypassUntil,
		}).Warn("Hash-chain mismatch accepted inside bypass window")
	}

	file, err := stream.Parse(content)
	if err != nil {
		return nil, err
	}

	if err := d.commit(file); err != nil {
		return nil, err
	}

	// The checkpoint advances strictly after commit, so it always names a
	// file whose effects are durably persisted.
	newCheckpoint := &checkpoint.Checkpoint{
		StreamType:   d.streamType,
		LastFileName: name,
		LastFileHash: winner.hash,
		BypassUntil:  cp.BypassUntil,
	}
	if err := d.checkpoints.Set(newCheckpoint); err != nil {
		return nil, err
	}

	signers := []string{}
	for _, c := range winner.members {
		signers = append(signers, c.node.Account)
	}

	result := &RoundResult{
		FileName:     name,
		Timestamp:    ts,
		Hash:         winner.hash,
		Signers:      signers,
		Excluded:     excluded,
		Transactions: len(file.Transactions),
		BypassUsed:   bypassUsed,
	}

	d.logger.WithFields(logrus.Fields{
		"file":         name,
		"signers":      len(signers),
		"excluded":     len(excluded),
		"transactions": result.Transactions,
	}).Info("Round committed")

	return result, nil
}

// selectWinner fans out the per-node fetches and returns the first group of
// identical content whose verified stake exceeds the quorum fraction, or nil
// if no group gets there. The round does not wait for slow minority nodes once
// a group has already settled quorum; late results drain into the buffered
// channel and are dropped.
func (d *Downloader) selectWinner(book *nodebook.NodeBook, name string, excluded map[string]string) *hashGroup {
	resCh := make(chan *candidate, book.Len())
	for _, node := range book.Nodes {
		go func(n *nodebook.Node) {
			resCh <- d.fetchCandidate(n, name)
		}(node)
	}

	groups := map[string]*hashGroup{}
	order := []*hashGroup{}

	for i := 0; i < book.Len(); i++ {
		c := <-resCh

		if c.err != nil {
			excluded[c.node.Account] = c.err.Error()
			d.logger.WithFields(logrus.Fields{
				"node": c.node.Account,
				"file": name,
			}).WithError(c.err).Debug("Excluding node from round")
			continue
		}

		g, ok := groups[string(c.hash)]
		if !ok {
			g = &hashGroup{hash: c.hash}
			groups[string(c.hash)] = g
			order = append(order, g)
		}
		g.members = append(g.members, c)
		g.stake += c.node.Stake

		// quorum is decidable as soon as one group's stake clears the
		// fraction; no need to wait for the remaining nodes
		if book.ReachesQuorum(g.stake) && d.confirmGroup(book, g, excluded) {
			return g
		}
	}

	// all nodes responded or timed out; settle groups in the order their
	// stake accumulated
	for _, g := range order {
		if book.ReachesQuorum(g.stake) && d.confirmGroup(book, g, excluded) {
			return g
		}
	}

	return nil
}

// confirmGroup verifies the signatures of a group's members against their
// node-book public keys. A failed verification demotes the node's stake from
// the group; confirmGroup then re-evaluates whether the group still reaches
// quorum.
func (d *Downloader) confirmGroup(book *nodebook.NodeBook, g *hashGroup, excluded map[string]string) bool {
	kept := g.members[:0]
	for _, c := range g.members {
		if !c.verified {
			ok, err := c.node.Verify(g.hash, c.sig)
			if err != nil || !ok {
				g.stake -= c.node.Stake
				excluded[c.node.Account] = "invalid signature"
				d.logger.WithFields(logrus.Fields{
					"node": c.node.Account,
					"hash": fmt.Sprintf("%X", g.hash),
				}).Warn("Demoting node with invalid signature")
				continue
			}
			c.verified = true
		}
		kept = append(kept, c)
	}
	g.members = kept

	return book.ReachesQuorum(g.stake)
}

// fetchCandidate fetches one node's copy of the file and its signature, under
// the per-node timeout. A timed-out fetch is excluded from the round; it never
// cancels the round.
func (d *Downloader) fetchCandidate(n *nodebook.Node, name string) *candidate {
	done := make(chan *candidate, 1)

	go func() {
		c := &candidate{node: n}

		content, err := d.store.Fetch(n.Account, d.streamType, name)
		if err != nil {
			c.err = err
			done <- c
			return
		}

		sigRaw, err := d.store.Fetch(n.Account, d.streamType, stream.SigName(name))
		if err != nil {
			c.err = err
			done <- c
			return
		}

		sigHash, sig, err := stream.ParseSignature(sigRaw)
		if err != nil {
			c.err = err
			done <- c
			return
		}

		c.content = content
		c.hash = stream.FileHash(content)
		c.sig = sig

		// a signature file that disagrees with the content it rode along
		// with is corrupt transport, not a quorum vote
		if !bytes.Equal(sigHash, c.hash) {
			c.err = fmt.Errorf("signature file hash does not match content hash")
		}

		done <- c
	}()

	select {
	case c := <-done:
		return c
	case <-time.After(d.fetchTimeout):
		return &candidate{node: n, err: errFetchTimeout}
	}
}
