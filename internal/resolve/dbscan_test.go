package resolve

import "testing"

func TestClusterEmbeddingsTwoGroups(t *testing.T) {
	embeddings := [][]float32{
		{1, 0, 0},
		{0.99, 0.05, 0},
		{0, 1, 0},
		{0.05, 0.99, 0},
	}

	labels := ClusterEmbeddings(embeddings, 0.5, 1)

	if len(labels) != len(embeddings) {
		t.Fatalf("got %d labels for %d embeddings", len(labels), len(embeddings))
	}
	if labels[0] != labels[1] {
		t.Errorf("near-identical embeddings 0 and 1 split into clusters %d and %d", labels[0], labels[1])
	}
	if labels[2] != labels[3] {
		t.Errorf("near-identical embeddings 2 and 3 split into clusters %d and %d", labels[2], labels[3])
	}
	if labels[0] == labels[2] {
		t.Errorf("orthogonal groups merged into cluster %d", labels[0])
	}
	for i, l := range labels {
		if l == dbscanNoise {
			t.Errorf("embedding %d marked noise with minSamples=1", i)
		}
	}
}

func TestClusterEmbeddingsEmpty(t *testing.T) {
	if labels := ClusterEmbeddings(nil, 0.5, 1); len(labels) != 0 {
		t.Errorf("got %d labels for empty input", len(labels))
	}
}

func TestClusterEmbeddingsSinglePoint(t *testing.T) {
	labels := ClusterEmbeddings([][]float32{{1, 0}}, 0.5, 1)
	if len(labels) != 1 || labels[0] != 0 {
		t.Errorf("labels = %v, want [0]", labels)
	}
}

func TestClusterEmbeddingsNoiseWithMinSamples(t *testing.T) {
	embeddings := [][]float32{
		{1, 0},
		{0.99, 0.02},
		{0.98, 0.04},
		{0, 1}, // isolated
	}

	labels := ClusterEmbeddings(embeddings, 0.1, 3)

	if labels[3] != dbscanNoise {
		t.Errorf("isolated embedding labeled %d, want noise", labels[3])
	}
	for i := 0; i < 3; i++ {
		if labels[i] == dbscanNoise {
			t.Errorf("dense-group embedding %d marked noise", i)
		}
	}
}
