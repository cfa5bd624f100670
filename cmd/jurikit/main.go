// jurikit turns the court decision archives published by DILA into JSON
// lines datasets, one per corpus.
package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/miku/jurikit/config"
	log "github.com/sirupsen/logrus"
)

var docs = strings.TrimLeft(`
# jurikit - court decisions to JSON lines

Downloads the open data archives of French court decisions published by DILA
(https://echanges.dila.gouv.fr/OPENDATA/), unpacks them and extracts one flat
record per decision into a JSON lines file.

## corpora

capp  decisions of the appellate courts
cass  published decisions of the supreme court
inca  unpublished decisions of the supreme court
jade  decisions of the administrative courts
cnil  deliberations of the data protection authority

Archive names are read from a comma separated list file (e.g. CASSLISTE.csv
in the data directory); cnil archives are scraped from the index page.

## examples

	$ jurikit corpora
	$ jurikit archives cass
	$ jurikit run cass jade
	$ jurikit run --all --since 2024-01-01
	$ jurikit run cass --no-fetch -b 500
	$ jurikit parse cass JURITEXT000007000001.xml | jq .titre

## layout

	<data-dir>/<corpus>/<corpus>_dataset.jsonl   dataset
	<data-dir>/<corpus>/extracted/<archive>/     unpacked archives
	<data-dir>/logs/                             one log file per run

## environment

Defaults are read from JURIKIT_DATA_DIR, JURIKIT_LIST_DIR, JURIKIT_LOG_DIR,
JURIKIT_WORKERS, JURIKIT_FETCH_WORKERS, JURIKIT_BATCH_SIZE, JURIKIT_TIMEOUT,
JURIKIT_USER_AGENT and JURIKIT_KEEP_ARCHIVES, also from a .env file in the
working directory.
`, "\n")

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("ignoring .env: %v", err)
	}
	if err := newRootCmd(config.Default()).Execute(); err != nil {
		os.Exit(1)
	}
}
