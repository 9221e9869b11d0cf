// Package testdata builds randomized model objects for tests.
package testdata

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/models"
	"github.com/icrowley/fake"
	"github.com/satori/go.uuid"
)

func MakeSpace(accessProtocol string) *models.Space {
	space := &models.Space{
		UUID:           uuid.NewV4().String(),
		AccessProtocol: accessProtocol,
		StagingPath:    fmt.Sprintf("/var/spaces/staging/%s", fake.Word()),
		Size:           int64(rand.Intn(5000000)),
	}
	if accessProtocol != constants.ProtocolObjectStore &&
		accessProtocol != constants.ProtocolRemoteArchive {
		space.Path = fmt.Sprintf("/var/spaces/%s", fake.Word())
	}
	return space
}

func MakePackage(spaceUUID string) *models.Package {
	if spaceUUID == "" {
		spaceUUID = uuid.NewV4().String()
	}
	return models.NewPackage(uuid.NewV4().String(),
		fmt.Sprintf("transfers/%s.tar.gz", fake.Word()), spaceUUID)
}

func MakeIngest(statusID string) *models.Ingest {
	ingest := &models.Ingest{}
	ingest.ID = uuid.NewV4().String()
	ingest.Status.ID = statusID
	ingest.Bag.Info.ExternalIdentifier = RandomBagIdentifier()
	ingest.Bag.Info.Version = fmt.Sprintf("v%d", rand.Intn(20)+1)
	if statusID == constants.IngestFailed {
		ingest.Events = []models.IngestEvent{
			{Description: fake.Sentence()},
		}
	}
	return ingest
}

func MakeMoveRequest(direction string) *models.MoveRequest {
	return &models.MoveRequest{
		PackageUUID:     uuid.NewV4().String(),
		Direction:       direction,
		Source:          fmt.Sprintf("staging/%s.tar.gz", fake.Word()),
		Destination:     fmt.Sprintf("stored/%s.tar.gz", fake.Word()),
		SpaceUUID:       uuid.NewV4().String(),
		SourceSpaceUUID: uuid.NewV4().String(),
	}
}

func RandomBagIdentifier() string {
	return fmt.Sprintf("%s/%d", strings.ToLower(fake.Word()), rand.Intn(30)+1990)
}
