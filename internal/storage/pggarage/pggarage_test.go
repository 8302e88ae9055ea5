package pggarage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/PlateWorks/ServiceBox/internal/models"
)

func startStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "servicebox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/servicebox_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGGarage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	// vehicle upsert is idempotent
	v1, err := st.EnsureVehicle(ctx, "ABC1D23")
	require.NoError(t, err)
	v2, err := st.EnsureVehicle(ctx, "ABC1D23")
	require.NoError(t, err)
	require.Equal(t, v1, v2)

	veh, err := st.GetVehicle(ctx, v1)
	require.NoError(t, err)
	require.Equal(t, "ABC1D23", veh.Plate)

	// mechanic resolution is case-insensitive, first casing wins
	m1, err := st.EnsureMechanic(ctx, "Joao")
	require.NoError(t, err)
	m2, err := st.EnsureMechanic(ctx, "joao")
	require.NoError(t, err)
	require.Equal(t, m1, m2)

	var storedName string
	require.NoError(t, st.db.QueryRow(ctx, `SELECT name FROM mechanics WHERE id = $1`, m1).Scan(&storedName))
	require.Equal(t, "Joao", storedName)

	// open a service
	started := time.Now().UTC().Add(-time.Hour)
	svc, err := st.CreateService(ctx, ServiceCreate{
		VehicleID:   v1,
		MechanicID:  &m1,
		Description: "revisão",
		Status:      models.StatusEmEspera,
		StartedAt:   started,
	})
	require.NoError(t, err)
	require.NotZero(t, svc.ID)
	require.Nil(t, svc.FinishedAt)

	// a second open service for the same vehicle hits the partial index
	_, err = st.CreateService(ctx, ServiceCreate{
		VehicleID: v1,
		Status:    models.StatusEmManutencao,
		StartedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, models.ErrDuplicateOpenService)

	// partial update leaves unmentioned fields alone
	pronto := models.StatusPronto
	patched, err := st.PatchService(ctx, svc.ID, ServiceUpdate{Status: &pronto})
	require.NoError(t, err)
	require.Equal(t, models.StatusPronto, patched.Status)
	require.Equal(t, "revisão", patched.Description)
	require.NotNil(t, patched.MechanicID)

	// unassign the mechanic
	patched, err = st.PatchService(ctx, svc.ID, ServiceUpdate{SetMechanic: true})
	require.NoError(t, err)
	require.Nil(t, patched.MechanicID)

	// deliver with auto-stamped finish
	entregue := models.StatusEntregue
	now := time.Now().UTC()
	delivered, err := st.PatchService(ctx, svc.ID, ServiceUpdate{Status: &entregue, AutoFinish: &now})
	require.NoError(t, err)
	require.Equal(t, models.StatusEntregue, delivered.Status)
	require.NotNil(t, delivered.FinishedAt)
	require.WithinDuration(t, now, *delivered.FinishedAt, time.Second)

	// terminal: no more transitions, not even an empty patch
	_, err = st.PatchService(ctx, svc.ID, ServiceUpdate{Status: &pronto})
	require.ErrorIs(t, err, models.ErrServiceClosed)

	_, err = st.PatchService(ctx, svc.ID, ServiceUpdate{})
	require.ErrorIs(t, err, models.ErrServiceClosed)

	// delivered-but-unsigned still blocks a new service and shows as current
	_, err = st.CreateService(ctx, ServiceCreate{
		VehicleID: v1,
		Status:    models.StatusEmEspera,
		StartedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, models.ErrDuplicateOpenService)

	view, err := st.QueryByPlate(ctx, "ABC1D23")
	require.NoError(t, err)
	require.NotNil(t, view)
	require.NotNil(t, view.Current)
	require.Equal(t, svc.ID, view.Current.ServiceID)
	require.Nil(t, view.Last)

	// sign exactly once
	signed, err := st.AttachSignature(ctx, svc.ID, "https://storage/service.png", nil, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, signed.SignedAt)

	_, err = st.AttachSignature(ctx, svc.ID, "https://storage/service.png", nil, time.Now().UTC())
	require.ErrorIs(t, err, models.ErrAlreadySigned)

	// signed delivery flips from current to last, and a new service can open
	next, err := st.CreateService(ctx, ServiceCreate{
		VehicleID: v1,
		Status:    models.StatusEmManutencao,
		StartedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	view, err = st.QueryByPlate(ctx, "ABC1D23")
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	require.Equal(t, next.ID, view.Current.ServiceID)
	require.NotNil(t, view.Last)
	require.Equal(t, svc.ID, view.Last.ServiceID)
	require.NotNil(t, view.Last.SignedAt)

	// signing a non-delivered service is rejected
	_, err = st.AttachSignature(ctx, next.ID, "https://storage/x.png", nil, time.Now().UTC())
	require.ErrorIs(t, err, models.ErrServiceNotDelivered)
}

func TestPGGarage_ViewQueries(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	// unknown plate: no row, no error
	view, err := st.QueryByPlate(ctx, "ZZZ9999")
	require.NoError(t, err)
	require.Nil(t, view)

	vOld, err := st.EnsureVehicle(ctx, "AAA1111")
	require.NoError(t, err)
	vNew, err := st.EnsureVehicle(ctx, "BBB2222")
	require.NoError(t, err)

	_, err = st.CreateService(ctx, ServiceCreate{
		VehicleID: vOld,
		Status:    models.StatusEmEspera,
		StartedAt: time.Now().UTC().Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = st.CreateService(ctx, ServiceCreate{
		VehicleID: vNew,
		Status:    models.StatusEmManutencao,
		StartedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	// most recently started first
	open, err := st.QueryOpenAcrossFleet(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	require.Equal(t, "BBB2222", open[0].Plate)
	require.Equal(t, "AAA1111", open[1].Plate)

	// vehicle with no services at all still yields a row with empty pair
	_, err = st.EnsureVehicle(ctx, "CCC3333")
	require.NoError(t, err)
	view, err = st.QueryByPlate(ctx, "CCC3333")
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Nil(t, view.Current)
	require.Nil(t, view.Last)
}

func TestPGGarage_GetServiceNotFound(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	_, err := st.GetService(ctx, 12345)
	require.ErrorIs(t, err, models.ErrServiceNotFound)

	_, err = st.PatchService(ctx, 12345, ServiceUpdate{SetDescription: true})
	require.ErrorIs(t, err, models.ErrServiceNotFound)
}
