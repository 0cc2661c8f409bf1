package resolve

// DBSCAN over cosine distance, for the offline cluster-preview maintenance
// operation. Never invoked by the ingestion or resolution write path; the
// online greedy algorithm in resolver.go is the only thing that assigns
// persons.

const dbscanNoise = -1

// ClusterEmbeddings groups embeddings by density: points within eps cosine
// distance of each other end up in the same cluster. Labels are returned in
// input order; with minSamples <= 1 every point gets a cluster, so there is
// no noise label in the default configuration.
func ClusterEmbeddings(embeddings [][]float32, eps float64, minSamples int) []int {
	n := len(embeddings)
	if n == 0 {
		return nil
	}
	if minSamples < 1 {
		minSamples = 1
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = dbscanNoise
	}

	visited := make([]bool, n)
	cluster := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(embeddings, i, eps)
		if len(neighbors) < minSamples {
			continue // noise (only possible when minSamples > 1)
		}

		labels[i] = cluster
		expandCluster(embeddings, labels, visited, neighbors, cluster, eps, minSamples)
		cluster++
	}

	return labels
}

func expandCluster(embeddings [][]float32, labels []int, visited []bool, seeds []int, cluster int, eps float64, minSamples int) {
	for qi := 0; qi < len(seeds); qi++ {
		p := seeds[qi]

		if !visited[p] {
			visited[p] = true
			neighbors := regionQuery(embeddings, p, eps)
			if len(neighbors) >= minSamples {
				seeds = append(seeds, neighbors...)
			}
		}

		if labels[p] == dbscanNoise {
			labels[p] = cluster
		}
	}
}

func regionQuery(embeddings [][]float32, idx int, eps float64) []int {
	var neighbors []int
	for j := range embeddings {
		if CosineDistance(embeddings[idx], embeddings[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
