package sink

// Open builds the sink cfg describes: Kafka when brokers are set, MinIO
// when an endpoint is set, stdout for "-", else a local file.
//
// Example:
//
//	s, err := sink.Open(sink.Config{Path: "trace.json.gz", Compress: true})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
func Open(cfg Config) (Sink, error) {
	switch {
	case len(cfg.Kafka.Brokers) > 0:
		s, err := NewKafka(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.Minio.Endpoint != "":
		s, err := NewMinio(cfg.Minio, cfg.Compress)
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.Path == Stdout:
		return NewStdout(), nil
	default:
		s, err := NewFile(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
