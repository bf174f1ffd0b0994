// csbuild walks the filesystem paths named in a build config, indexes
// every file it finds, dumps the resulting index to disk, and records
// the build in the catalog database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/codesearch/internal/catalogdb"
	"github.com/ZanzyTHEbar/codesearch/internal/config"
	"github.com/ZanzyTHEbar/codesearch/internal/index"
	"github.com/ZanzyTHEbar/codesearch/internal/obs"
	"github.com/ZanzyTHEbar/codesearch/internal/walk"
)

func main() {
	configPath := flag.String("config", "", "path to csbuild.yaml (defaults to ./csbuild.yaml or ../csbuild.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger := obs.Logger()
		logger.Error().Err(err).Msg("csbuild: failed")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadBuildConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading build config: %w", err)
	}
	log := obs.Logger()

	ix := index.New(
		index.WithChunkCapacity(cfg.ChunkBytes),
		index.WithWorkers(cfg.Workers),
	)

	var trees []catalogdb.TreeRecord
	for _, p := range cfg.FSPaths {
		n, err := walk.Tree(ix, cfg.Name, "fs", p, walk.Options{IgnoreFiles: cfg.IgnoreFiles})
		if err != nil {
			return fmt.Errorf("walking %s: %w", p, err)
		}
		log.Info().Str("path", p).Int("files", n).Msg("csbuild: walked tree")
		trees = append(trees, catalogdb.TreeRecord{Name: cfg.Name, Version: "fs"})
	}
	for _, repo := range cfg.Repositories {
		for _, rev := range repo.Revisions {
			n, err := walk.Tree(ix, repo.Name, rev, repo.Path, walk.Options{
				Metadata:    repo.Metadata,
				IgnoreFiles: cfg.IgnoreFiles,
			})
			if err != nil {
				return fmt.Errorf("walking %s@%s: %w", repo.Name, rev, err)
			}
			log.Info().Str("repo", repo.Name).Str("rev", rev).Int("files", n).Msg("csbuild: walked tree")
			metaJSON, err := json.Marshal(repo.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling metadata for %s: %w", repo.Name, err)
			}
			trees = append(trees, catalogdb.TreeRecord{Name: repo.Name, Version: rev, MetaJSON: string(metaJSON)})
		}
	}

	if err := ix.Finalize(); err != nil {
		return fmt.Errorf("finalizing index: %w", err)
	}

	if err := ix.Dump(cfg.DumpPath); err != nil {
		return fmt.Errorf("dumping index to %s: %w", cfg.DumpPath, err)
	}

	db, err := catalogdb.Open(cfg.CatalogDSN)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer db.Close()

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling build config: %w", err)
	}
	build, err := db.RecordBuild(cfg.Name, cfg.DumpPath, string(configJSON), trees)
	if err != nil {
		return fmt.Errorf("recording build: %w", err)
	}

	log.Info().Str("build_id", build.ID.String()).Str("dump", cfg.DumpPath).Msg("csbuild: build complete")
	return nil
}
