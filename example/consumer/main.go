// Command consumer demonstrates wiring a Segmenter over a simulated
// Kinesis Video Streams byte feed: it reads an MKV file in fixed-size
// chunks, reassembles fragments, prints each fragment's tags, and, when
// -out-wav is set, saves the customer audio track of the first fragment
// as a WAV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aws-samples/amazon-kinesis-video-streams-ebml-go/ebml"
	"github.com/aws-samples/amazon-kinesis-video-streams-ebml-go/kvsfragment"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	inputPath := flag.String("input", "", "path to an MKV file to replay as a simulated KVS byte feed")
	chunkSize := flag.Int("chunk-size", 4096, "bytes per simulated GetMedia chunk")
	outputWAV := flag.String("out-wav", "", "optional path to write the first fragment's customer audio track")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *inputPath == "" {
		log.Fatal().Msg("consumer: -input is required")
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("consumer: failed to read input")
	}

	registry := ebml.NewRegistry(0)
	schema, err := registry.Resolve("")
	if err != nil {
		log.Fatal().Err(err).Msg("consumer: failed to resolve schema")
	}

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		for offset := 0; offset < len(data); offset += *chunkSize {
			end := offset + *chunkSize
			if end > len(data) {
				end = len(data)
			}
			chunks <- data[offset:end]
		}
	}()

	fragmentCount := 0
	seg := kvsfragment.NewSegmenter("demo-stream", schema)
	seg.OnFragmentArrived = func(f kvsfragment.Fragment) {
		fragmentCount++
		tags, err := kvsfragment.GetFragmentTags(context.Background(), f.DOM)
		if err != nil {
			log.Warn().Err(err).Int("fragment", fragmentCount).Msg("consumer: failed to read tags")
		}
		fmt.Printf("fragment %d: %d bytes, parsed in %s, tags=%v\n", fragmentCount, len(f.Bytes), f.Duration, tags)

		if fragmentCount == 1 && *outputWAV != "" {
			wav, err := kvsfragment.SaveCustomerAudioTrackAsWAV(context.Background(), f.DOM)
			if err != nil {
				log.Warn().Err(err).Msg("consumer: no customer audio track in first fragment")
				return
			}
			if err := os.WriteFile(*outputWAV, wav, 0o644); err != nil {
				log.Error().Err(err).Msg("consumer: failed to write wav")
				return
			}
			fmt.Printf("wrote customer audio track to %s\n", *outputWAV)
		}
	}
	seg.OnStreamComplete = func(stream string) {
		fmt.Printf("stream %s complete: %d fragments\n", stream, fragmentCount)
	}
	seg.OnStreamException = func(stream string, err error, lastGood *kvsfragment.Fragment) {
		log.Error().Err(err).Str("stream", stream).Msg("consumer: stream failed")
	}

	seg.Run(context.Background(), chunks)
}
