// Package config defines the configuration for a mirror ingestor.
//
// Regardless of how the ingestor is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, the ingestor relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  nodes.json // a JSON file containing the genesis node book.
//  streams/   // (default location) the per-node stream file trees.
//  badger_db/ // (with --store) the checkpoint database.
package config
