package config

import (
	"ambrosial/internal/changelog"
	"ambrosial/internal/manifest"
)

// ChangelogWriter builds the configured changelog sink. It returns nil for
// "none".
func (c Config) ChangelogWriter() (changelog.Writer, error) {
	var ws []changelog.Writer
	if usesFile(c.ChangelogSink) {
		fw, err := changelog.NewFileWriter(c.DataDir, changelog.DefaultFile)
		if err != nil {
			return nil, err
		}
		ws = append(ws, fw)
	}
	if usesKafka(c.ChangelogSink) {
		ws = append(ws, changelog.NewKafkaWriter(c.Brokers(), c.TopicChangelog))
	}
	switch len(ws) {
	case 0:
		return nil, nil
	case 1:
		return ws[0], nil
	}
	return changelog.NewMultiWriter(ws...), nil
}

func (c Config) ManifestPublisher() manifest.Publisher {
	var pubs []manifest.Publisher
	if usesFile(c.ManifestSink) {
		pubs = append(pubs, manifest.NewFilesystemManifest(c.DataDir))
	}
	if usesKafka(c.ManifestSink) {
		pubs = append(pubs, manifest.NewKafkaManifest(c.Brokers(), c.TopicManifest, c.ManifestKey))
	}
	if len(pubs) == 1 {
		return pubs[0]
	}
	return manifest.MultiPublisher(pubs...)
}

// ManifestReader reads from the file sink when there is one, else from Kafka.
func (c Config) ManifestReader() manifest.Reader {
	if usesFile(c.ManifestSink) {
		return manifest.NewFilesystemManifest(c.DataDir)
	}
	return manifest.NewKafkaReader(c.Brokers(), c.TopicManifest, c.ManifestKey)
}
